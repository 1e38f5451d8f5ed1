package identity

import "testing"

func TestAEM2IPRoundTrip(t *testing.T) {
	subnet := "10.0"
	for _, aem := range []AEM{1, 42, 256, 9990, 9991, 65535} {
		ip := AEM2IP(subnet, aem)
		got, err := IP2AEM(subnet, ip)
		if err != nil {
			t.Fatalf("IP2AEM(%s): %v", ip, err)
		}
		if got != aem {
			t.Errorf("round trip: aem=%d ip=%s got=%d", aem, ip, got)
		}
	}
}

func TestIP2AEMRejectsOtherSubnet(t *testing.T) {
	if _, err := IP2AEM("10.0", "192.168.1.2"); err == nil {
		t.Error("expected error for address outside configured subnet")
	}
}

func TestDirectoryLookupUnknownPeer(t *testing.T) {
	d := NewFromList("10.0", []AEM{9990, 9991})
	entry := d.Lookup(9999)
	if entry.Known() {
		t.Errorf("expected unknown peer, got index %d", entry.Index)
	}

	known := d.Lookup(9991)
	if !known.Known() || known.Index != 1 {
		t.Errorf("expected index 1, got %+v", known)
	}
}

func TestDirectoryFromRange(t *testing.T) {
	d := NewFromRange("10.0", 9990, 3)
	if d.Len() != 3 {
		t.Fatalf("expected length 3, got %d", d.Len())
	}
	if d.ByIndex(2) != 9992 {
		t.Errorf("expected AEM 9992 at index 2, got %d", d.ByIndex(2))
	}
}

func TestResolveIPMatchesAEM2IP(t *testing.T) {
	d := NewFromList("10.0", []AEM{9990, 9991})
	ip := d.AEM2IP(9991)
	entry := d.ResolveIP(ip)
	if !entry.Known() || entry.AEM != 9991 {
		t.Errorf("expected to resolve back to 9991, got %+v", entry)
	}
}
