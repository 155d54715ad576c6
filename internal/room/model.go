package room

import (
	"time"
)

// Room is the durable record of a collaborative room. RoomUUID is the
// public identity and never changes after creation.
type Room struct {
	ID        uint64
	RoomUUID  string `gorm:"uniqueIndex"`
	OwnerID   uint64 `gorm:"index"`
	Name      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Info is the JSON snapshot of a room cached in the fast store under
// "room:{room_uuid}".
type Info struct {
	RoomUUID  string    `json:"room_uuid"`
	OwnerID   uint64    `json:"owner_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Room) ToInfo() Info {
	return Info{
		RoomUUID:  r.RoomUUID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
