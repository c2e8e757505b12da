package model

import (
	"testing"
	"time"
)

func TestVerzoekTypeVersion_IsExpired(t *testing.T) {
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	tests := []struct {
		name  string
		einde *time.Time
		want  bool
	}{
		{"без даты окончания", nil, false},
		{"окончание сегодня", &today, true},
		{"окончание вчера", &yesterday, true},
		{"окончание завтра", &tomorrow, false},
	}
	for _, tt := range tests {
		v := VerzoekTypeVersion{EindeGeldigheid: tt.einde}
		if got := v.IsExpired(today); got != tt.want {
			t.Errorf("%s: IsExpired = %v, ожидалось %v", tt.name, got, tt.want)
		}
	}
}

func TestVerzoekType_LastVersion(t *testing.T) {
	if got := (VerzoekType{}).LastVersion(); got != 0 {
		t.Errorf("LastVersion() = %d, ожидалось 0", got)
	}
	if got := (VerzoekType{Versions: []int{1, 2, 3}}).LastVersion(); got != 3 {
		t.Errorf("LastVersion() = %d, ожидалось 3", got)
	}
}

func TestBerichtOntvanger_Geopend(t *testing.T) {
	now := time.Now()
	if (BerichtOntvanger{}).Geopend() {
		t.Error("без geopendOp сообщение не открыто")
	}
	if !(BerichtOntvanger{GeopendOp: &now}).Geopend() {
		t.Error("с geopendOp сообщение открыто")
	}
}

func TestIngediendDoor_Variants(t *testing.T) {
	d := IngediendDoor{
		AuthentiekeVerwijzing:           &AuthentiekeVerwijzing{URN: "urn:nl:bsn:123"},
		NietAuthentiekePersoonsgegevens: &NietAuthentiekePersoonsgegevens{},
	}
	if d.Variants() != 2 {
		t.Errorf("Variants() = %d, ожидалось 2", d.Variants())
	}
}

func TestTruncateDate(t *testing.T) {
	in := time.Date(2026, 5, 4, 23, 59, 0, 0, time.FixedZone("CET", 3600))
	want := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	if got := TruncateDate(in); !got.Equal(want) {
		t.Errorf("TruncateDate = %v, ожидалось %v", got, want)
	}
}
