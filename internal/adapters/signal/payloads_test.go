package signal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/coachline/internal/domain"
)

func TestCallPayloadUser(t *testing.T) {
	meta := domain.NewMember(domain.Principal{ID: "S", Role: domain.RoleStaff}, "c1")
	tests := []struct {
		name string
		p    callPayload
		want domain.UserID
	}{
		{"userId", callPayload{UserID: "U"}, "U"},
		{"userId wins over target", callPayload{UserID: "U", Target: "room:V"}, "U"},
		{"room target", callPayload{Target: "room:U"}, "U"},
		{"bare target", callPayload{Target: "U"}, "U"},
		{"staff target", callPayload{Target: "staff"}, ""},
		{"nothing", callPayload{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.user(meta); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	var p callPayload
	if err := decode(nil, &p); err != nil {
		t.Fatalf("empty payload should decode: %v", err)
	}
	if err := decode(json.RawMessage(`"oops"`), &p); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if err := decode(json.RawMessage(`{"offer":{"sdp":"v=0"}}`), &p); err != nil {
		t.Fatal(err)
	}
	if string(p.offer().Offer) != `{"sdp":"v=0"}` {
		t.Fatalf("offer should stay opaque, got %s", p.offer().Offer)
	}
}
