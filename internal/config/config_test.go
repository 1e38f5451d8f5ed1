package config

import (
	"testing"

	"github.com/aemnet/aemnode/internal/identity"
)

func TestValidateRejectsUnknownSelf(t *testing.T) {
	cfg := Default()
	cfg.PeerSource = SourceList
	cfg.PeerList = []identity.AEM{10, 11}
	cfg.SelfAEM = 999

	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a self AEM absent from the directory")
	}
}

func TestValidateAcceptsKnownSelf(t *testing.T) {
	cfg := Default()
	cfg.PeerSource = SourceList
	cfg.PeerList = []identity.AEM{10, 11}
	cfg.SelfAEM = 10

	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadProducerRange(t *testing.T) {
	cfg := Default()
	cfg.PeerSource = SourceList
	cfg.PeerList = []identity.AEM{10}
	cfg.SelfAEM = 10
	cfg.ProducerDelayMin = 30
	cfg.ProducerDelayMax = 5

	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an inverted producer delay range")
	}
}
