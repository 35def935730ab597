package signal

import (
	"encoding/json"
	"strings"

	"github.com/dkeye/coachline/internal/app/orch"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/rs/zerolog/log"
)

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.Errorf(domain.KindBadRequest, "invalid payload")
	}
	return nil
}

type chatPayload struct {
	Content  string   `json:"content"`
	MediaIDs []string `json:"mediaIds"`
	UserID   string   `json:"userId"`
}

func (p chatPayload) normalize() orch.ChatRequest {
	return orch.ChatRequest{
		UserID:   domain.UserID(strings.TrimSpace(p.UserID)),
		Content:  p.Content,
		MediaIDs: p.MediaIDs,
	}
}

// callPayload is the union of every call event shape. Target is the
// deprecated addressing field; UserID wins when both are present.
type callPayload struct {
	UserID    string          `json:"userId"`
	Target    string          `json:"target"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
	Reason    string          `json:"reason"`
}

// user resolves the addressed end-user. A target naming the staff room
// means no explicit target.
func (p callPayload) user(meta *domain.Member) domain.UserID {
	if id := strings.TrimSpace(p.UserID); id != "" {
		return domain.UserID(id)
	}
	target := strings.TrimSpace(p.Target)
	if target == "" || target == string(domain.StaffRoom) {
		return ""
	}
	log.Warn().Str("module", "signal").Str("conn", string(meta.Conn)).Str("target", target).Msg("deprecated target field, use userId")
	if id, ok := domain.UserFromRoom(target); ok {
		return id
	}
	return domain.UserID(target)
}

func (p callPayload) offer() orch.OfferRequest {
	return orch.OfferRequest{Offer: p.Offer}
}

func (p callPayload) answer(meta *domain.Member) orch.AnswerRequest {
	return orch.AnswerRequest{UserID: p.user(meta), Answer: p.Answer}
}

func (p callPayload) ice(meta *domain.Member) orch.ICERequest {
	return orch.ICERequest{UserID: p.user(meta), Candidate: p.Candidate}
}

func (p callPayload) end(meta *domain.Member) orch.EndRequest {
	return orch.EndRequest{UserID: p.user(meta), Reason: strings.TrimSpace(p.Reason)}
}
