package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"chatdash/core"
	"chatdash/records"

	"github.com/sirupsen/logrus"
)

const (
	// UsersCollection is the storage key holding registered users.
	UsersCollection = "users"
	// MobileField is the identifier field of a user record.
	MobileField = "mobileNumber"
)

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	CountryCode  string `json:"countryCode"`
	MobileNumber string `json:"mobileNumber"`
}

// Validate checks the sign-up form.
func (in RegisterInput) Validate() error {
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return fmt.Errorf("%w: first name is required", core.ErrValidation)
	case strings.TrimSpace(in.LastName) == "":
		return fmt.Errorf("%w: last name is required", core.ErrValidation)
	case strings.TrimSpace(in.CountryCode) == "":
		return fmt.Errorf("%w: select a country code", core.ErrValidation)
	}
	return ValidateMobile(in.MobileNumber)
}

// ValidateMobile checks that mobile is exactly ten digits.
func ValidateMobile(mobile string) error {
	if !mobilePattern.MatchString(mobile) {
		return fmt.Errorf("%w: mobile number must be exactly 10 digits", core.ErrValidation)
	}
	return nil
}

// Directory stores users in the users collection keyed by mobile number.
type Directory struct {
	store *records.Store
}

// NewDirectory creates a user directory on top of store.
func NewDirectory(store *records.Store) *Directory {
	return &Directory{store: store}
}

// Register creates a user. A mobile number that is already registered returns
// core.ErrConflict.
func (d *Directory) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}

	user := core.User{
		MobileNumber: in.MobileNumber,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CountryCode:  strings.TrimSpace(in.CountryCode),
	}
	rec, err := userRecord(user)
	if err != nil {
		return core.User{}, err
	}

	outcome, err := d.store.Create(ctx, UsersCollection, rec, MobileField)
	if err != nil {
		return core.User{}, err
	}
	if outcome.Status == records.StatusConflict {
		return core.User{}, fmt.Errorf("user %s: %w", user.MobileNumber, core.ErrConflict)
	}

	logrus.WithField("mobile_number", user.MobileNumber).Info("User registered")
	return user, nil
}

// Lookup finds the user registered with mobile.
func (d *Directory) Lookup(ctx context.Context, mobile string) (core.User, error) {
	if err := ValidateMobile(mobile); err != nil {
		return core.User{}, err
	}

	result, err := d.store.Read(ctx, UsersCollection, &records.Filter{Field: MobileField, Value: mobile})
	if err != nil {
		return core.User{}, err
	}
	rec, ok := result.One()
	if !ok {
		if result.Cardinality == records.Many {
			return core.User{}, fmt.Errorf("user %s is registered more than once: %w", mobile, core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("user %s: %w", mobile, core.ErrNotFound)
	}
	return decodeUser(rec)
}

func userRecord(user core.User) (core.Record, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	rec := core.Record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeUser(rec core.Record) (core.User, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return core.User{}, err
	}
	var user core.User
	if err := json.Unmarshal(data, &user); err != nil {
		return core.User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}
