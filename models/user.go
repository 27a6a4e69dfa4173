package models

import (
	"time"

	utils "DirectChat/pkg/utills"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleUser     = "user"
	RoleEmployer = "employer"
	RoleAdmin    = "admin"
)

// RecentActivityWindow bounds the "recently active" ranking signal used by user search.
const RecentActivityWindow = 15 * time.Minute

type User struct {
	gorm.Model
	Email           string     `gorm:"uniqueIndex;size:120;not null"`
	Username        string     `gorm:"uniqueIndex;size:80;not null"`
	DisplayName     string     `gorm:"size:120"`
	Role            string     `gorm:"size:30;not null;default:user;index"`
	PasswordHash    string     `gorm:"size:255;not null"`
	ProfileImageURL string     `gorm:"size:500"`
	LastActiveAt    *time.Time `gorm:"index"`
	// SearchText is the folded username, display name and email.
	SearchText string `gorm:"type:text" json:"-"`
}

func (u *User) SearchKey() string {
	return utils.Fold(u.Username + "\n" + u.DisplayName + "\n" + u.Email)
}

func (u *User) BeforeSave(*gorm.DB) error {
	u.SearchText = u.SearchKey()
	return nil
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// Name is what other users see.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// PublicProfile is the part of a user other participants may see.
type PublicProfile struct {
	ID           uint       `json:"id"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Avatar       string     `json:"avatar,omitempty"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	IsOnline     bool       `json:"is_online"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Username:     u.Username,
		Name:         u.Name(),
		Role:         u.Role,
		Avatar:       u.ProfileImageURL,
		LastActiveAt: u.LastActiveAt,
	}
}
