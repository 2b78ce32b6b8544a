package converter

import (
	"time"

	"github.com/medetbek/kinotalk/internal/domain"
)

type RoomResponse struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	OwnerName   string    `json:"owner_name"`
	HasPassword bool      `json:"has_password"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	return &RoomResponse{
		Code:        r.Code,
		Name:        r.Name,
		OwnerName:   r.OwnerName,
		HasPassword: r.HasSecret(),
		MemberCount: r.MemberCount(),
		CreatedAt:   r.CreatedAt,
	}
}
