package handler

import (
	"time"

	"rollcall/internal/cutoff/models"
)

// TokenResponse is one ledger entry in token listings.
type TokenResponse struct {
	ID         int64      `json:"id"`
	Value      string     `json:"value"`
	Consumed   bool       `json:"consumed"`
	Note       string     `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`
}

// TokensResponse is the HTTP response for GET and POST /api/events/{eventID}/tokens.
type TokensResponse struct {
	Success bool            `json:"success"`
	Tokens  []TokenResponse `json:"tokens"`
}

// FromTokens converts ledger entries to an HTTP response.
func FromTokens(tokens []models.Token) *TokensResponse {
	resp := &TokensResponse{Success: true, Tokens: make([]TokenResponse, 0, len(tokens))}
	for _, token := range tokens {
		row := TokenResponse{
			ID:        token.ID,
			Value:     token.Value,
			Consumed:  token.Consumed,
			Note:      token.Note,
			CreatedAt: token.CreatedAt,
		}
		if !token.ConsumedAt.IsZero() {
			consumedAt := token.ConsumedAt
			row.ConsumedAt = &consumedAt
		}
		resp.Tokens = append(resp.Tokens, row)
	}
	return resp
}

// StatusResponse is the HTTP response for PATCH /api/events/{eventID}/status.
type StatusResponse struct {
	Success bool   `json:"success"`
	EventID int64  `json:"eventId"`
	Status  string `json:"status"`
}
