// Package coupon issues the unique six-digit codes handed out as quiz
// prizes and keeps the durable ledger of every code ever issued.
package coupon

import (
	"context"
	"errors"
	"time"
)

// CodeLength is the number of decimal digits in a code.
const CodeLength = 6

var (
	// ErrCodeTaken is returned by a Ledger when the code already exists.
	ErrCodeTaken = errors.New("coupon: code already issued")
	// ErrExhausted is returned when neither random nor fallback codes are free.
	ErrExhausted = errors.New("coupon: no free code available")
)

// Record is one ledger row.
type Record struct {
	Code        string    `json:"code" dynamodbav:"code"`
	UserID      int64     `json:"user_id" dynamodbav:"userId"`
	Username    string    `json:"username" dynamodbav:"username,omitempty"`
	DisplayName string    `json:"full_name" dynamodbav:"fullName,omitempty"`
	IssuedAt    time.Time `json:"issued_at" dynamodbav:"issuedAt"`
}

// Ledger stores issued codes. Reserve must insert rec only when its code is
// not present yet and report ErrCodeTaken otherwise. ByUser returns the
// earliest row issued to userID, with ok false when there is none.
type Ledger interface {
	Reserve(ctx context.Context, rec Record) error
	ByUser(ctx context.Context, userID int64) (rec Record, ok bool, err error)
}
