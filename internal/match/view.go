package match

import (
	"context"
	"time"

	"talk-n-share/internal/models"
	"talk-n-share/internal/utils"
)

// PartnerView is what a participant may see of the other seat. Until an
// anonymous session is revealed only Alias is filled.
type PartnerView struct {
	Alias       string `json:"alias"`
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Online      *bool  `json:"online,omitempty"`
}

type SessionView struct {
	ID             string               `json:"id"`
	Kind           models.SessionKind   `json:"kind"`
	Status         models.SessionStatus `json:"status"`
	Slot           string               `json:"slot"`
	LikedByA       bool                 `json:"liked_by_a"`
	LikedByB       bool                 `json:"liked_by_b"`
	LikedByMe      bool                 `json:"liked_by_me"`
	IsRevealed     bool                 `json:"is_revealed"`
	Version        int64                `json:"version"`
	Partner        PartnerView          `json:"partner"`
	CreatedAt      time.Time            `json:"created_at"`
	EndedAt        *time.Time           `json:"ended_at,omitempty"`
	EndedByPartner bool                 `json:"ended_by_partner,omitempty"`
}

type MessageView struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Mine          bool      `json:"mine"`
	SenderAlias   string    `json:"sender_alias"`
	SenderID      string    `json:"sender_id,omitempty"`
	Content       string    `json:"content"`
	MessageType   string    `json:"message_type"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func slotName(slot models.Slot) string {
	if slot == models.SlotB {
		return "b"
	}
	return "a"
}

func (s *Service) alias(sessionID, userID string) string {
	return utils.Alias(s.opts.AliasSecret, sessionID, userID)
}

// ViewFor renders session for viewer. Partner details are only loaded once
// identity is no longer hidden.
func (s *Service) ViewFor(ctx context.Context, viewerID string, session *models.MatchSession) (*SessionView, error) {
	slot := session.SlotOf(viewerID)
	if slot == models.SlotNone {
		return nil, ErrNotParticipant
	}
	partnerID := session.PartnerOf(viewerID)

	view := &SessionView{
		ID:         session.ID,
		Kind:       session.Kind,
		Status:     session.Status,
		Slot:       slotName(slot),
		LikedByA:   session.LikedByA,
		LikedByB:   session.LikedByB,
		LikedByMe:  session.LikedBy(slot),
		IsRevealed: session.IsRevealed,
		Version:    session.Version,
		CreatedAt:  session.CreatedAt,
		EndedAt:    session.EndedAt,
		Partner:    PartnerView{Alias: s.alias(session.ID, partnerID)},
	}
	if session.EndedBy != nil && *session.EndedBy == partnerID {
		view.EndedByPartner = true
	}

	if session.IdentityHidden() {
		return view, nil
	}

	view.Partner.ID = partnerID
	partner, err := s.store.GetProfile(ctx, partnerID)
	if err != nil {
		// the record itself is still correct without the profile details
		s.log.WithError(err).WithField("user_id", partnerID).Warn("partner profile unavailable")
		return view, nil
	}
	view.Partner.DisplayName = partner.DisplayName
	view.Partner.AvatarURL = partner.AvatarURL
	view.Partner.Bio = partner.Bio
	if partner.ShowOnlineStatus && s.opts.Presence != nil {
		online, err := s.opts.Presence.IsOnline(ctx, partnerID)
		if err == nil {
			view.Partner.Online = &online
		}
	}
	return view, nil
}

// ViewMessage renders msg for viewer using the session state it was sent in.
func (s *Service) ViewMessage(ctx context.Context, viewerID string, session *models.MatchSession, msg *models.Message) MessageView {
	view := MessageView{
		ID:          msg.ID,
		SessionID:   msg.SessionID,
		Mine:        msg.SenderID == viewerID,
		SenderAlias: s.alias(msg.SessionID, msg.SenderID),
		Content:     msg.Content,
		MessageType: msg.MessageType,
		CreatedAt:   msg.CreatedAt,
	}
	if view.Mine || !session.IdentityHidden() {
		view.SenderID = msg.SenderID
	}
	if msg.AttachmentKey != "" && s.opts.Signer != nil {
		url, err := s.opts.Signer.PresignGet(ctx, msg.AttachmentKey)
		if err != nil {
			s.log.WithError(err).WithField("message_id", msg.ID).Warn("could not sign attachment")
		} else {
			view.AttachmentURL = url
		}
	}
	return view
}
