package models

import "time"

// Secret - одноразовый PIN, привязанный к заявке и роли. Открытый текст не хранится.
type Secret struct {
	ID            string     `json:"id"`
	RequisitionID string     `json:"requisitionId"`
	RoleName      Role       `json:"roleName"`
	RecipientID   *string    `json:"recipientId,omitempty"`
	Hash          string     `json:"-"`
	Round         int        `json:"round"`
	GeneratedAt   time.Time  `json:"generatedAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	Used          bool       `json:"used"`
	UsedByID      *string    `json:"usedById,omitempty"`
	UsedAt        *time.Time `json:"usedAt,omitempty"`
	InvalidatedAt *time.Time `json:"invalidatedAt,omitempty"`
}

// Expired сообщает, истёк ли срок действия PIN к моменту now.
func (s *Secret) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IssueRequest представляет структуру запроса на выпуск PIN.
type IssueRequest struct {
	Role        Role   `json:"role"`
	RecipientID string `json:"recipientId,omitempty"`
}

// IssuedSecret возвращается один раз при выпуске PIN.
type IssuedSecret struct {
	SecretID    string    `json:"secretId"`
	Role        Role      `json:"role"`
	RecipientID string    `json:"recipientId,omitempty"`
	Plaintext   string    `json:"pin"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// VerifyRequest представляет структуру запроса на подтверждение PIN.
type VerifyRequest struct {
	Role Role   `json:"role"`
	PIN  string `json:"pin"`
}

// VerifyResult - итог подтверждения PIN.
type VerifyResult struct {
	Verified      bool `json:"verified"`
	QuorumReached bool `json:"quorumReached"`
	VerifiedRoles int  `json:"verifiedRoles"`
	Threshold     int  `json:"threshold"`
}
