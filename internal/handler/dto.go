package handler

import (
	"encoding/json"
	"time"

	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/service"
)

// UserDTO is the JSON representation of a user. It never carries the
// password hash.
type UserDTO struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.DisplayName,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// SnapshotDTO is the JSON representation of one month. ID is omitted and
// Payload is null when the month has never been saved.
type SnapshotDTO struct {
	ID      int64           `json:"id,omitempty"`
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Payload json.RawMessage `json:"payload"`
}

func toSnapshotDTO(s *domain.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		ID:      s.ID,
		Year:    s.Year,
		Month:   s.Month,
		Payload: s.Payload,
	}
}

func emptySnapshotDTO(year, month int) SnapshotDTO {
	return SnapshotDTO{Year: year, Month: month, Payload: json.RawMessage("null")}
}

// AuthResponseDTO is returned by every sign-in endpoint.
type AuthResponseDTO struct {
	User        UserDTO     `json:"user"`
	AccessToken string      `json:"access_token"`
	Storage     SnapshotDTO `json:"storage"`
}

func toAuthResponseDTO(res *service.AuthResult) AuthResponseDTO {
	return AuthResponseDTO{
		User:        toUserDTO(res.User),
		AccessToken: res.AccessToken,
		Storage:     toSnapshotDTO(res.Snapshot),
	}
}

// ProfileDTO describes the caller as asserted by their token.
type ProfileDTO struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
}

// YearDTO lists the months of a year that hold data.
type YearDTO struct {
	Year   int   `json:"year"`
	Months []int `json:"months"`
}
