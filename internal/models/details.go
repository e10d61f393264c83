package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
)

var ErrInvalidDetails = errors.New("invalid claim details")

// Details — вариант полезной нагрузки заявки, по одному на ClaimType.
type Details interface {
	ClaimType() ClaimType
	check() error
}

type TravelDetails struct {
	Purpose       string `json:"purpose" validate:"required"`
	Origin        string `json:"origin" validate:"required"`
	Destination   string `json:"destination" validate:"required"`
	DepartureDate string `json:"departureDate" validate:"required,datetime=2006-01-02"`
	ReturnDate    string `json:"returnDate" validate:"required,datetime=2006-01-02"`
	TravelMode    string `json:"travelMode" validate:"required,oneof=air rail road sea"`
}

func (TravelDetails) ClaimType() ClaimType { return ClaimTravel }

func (d TravelDetails) check() error {
	// ISO-даты сравниваются лексикографически
	if d.ReturnDate < d.DepartureDate {
		return errors.New("returnDate: must not be before departureDate")
	}
	return nil
}

type BusinessPromotionDetails struct {
	ClientName string `json:"clientName" validate:"required"`
	Purpose    string `json:"purpose" validate:"required"`
	EventDate  string `json:"eventDate" validate:"required,datetime=2006-01-02"`
	Attendees  int    `json:"attendees" validate:"gte=1"`
}

func (BusinessPromotionDetails) ClaimType() ClaimType { return ClaimBusinessPromotion }
func (BusinessPromotionDetails) check() error         { return nil }

type ConveyanceDetails struct {
	TravelDate  string  `json:"travelDate" validate:"required,datetime=2006-01-02"`
	From        string  `json:"from" validate:"required"`
	To          string  `json:"to" validate:"required"`
	DistanceKm  float64 `json:"distanceKm" validate:"gt=0"`
	VehicleType string  `json:"vehicleType" validate:"required,oneof=own_car own_bike taxi public"`
}

func (ConveyanceDetails) ClaimType() ClaimType { return ClaimConveyance }
func (ConveyanceDetails) check() error         { return nil }

type MobileBillDetails struct {
	BillingMonth string `json:"billingMonth" validate:"required,datetime=2006-01"`
	MobileNumber string `json:"mobileNumber" validate:"required,phone"`
	Provider     string `json:"provider" validate:"required"`
}

func (MobileBillDetails) ClaimType() ClaimType { return ClaimMobileBill }
func (MobileBillDetails) check() error         { return nil }

type RelocationDetails struct {
	FromCity       string `json:"fromCity" validate:"required"`
	ToCity         string `json:"toCity" validate:"required"`
	RelocationDate string `json:"relocationDate" validate:"required,datetime=2006-01-02"`
	FamilyMembers  int    `json:"familyMembers" validate:"gte=0"`
}

func (RelocationDetails) ClaimType() ClaimType { return ClaimRelocation }
func (RelocationDetails) check() error         { return nil }

type OtherDetails struct {
	Description string `json:"description" validate:"required"`
	Category    string `json:"category,omitempty"`
}

func (OtherDetails) ClaimType() ClaimType { return ClaimOther }
func (OtherDetails) check() error         { return nil }

func newDetails(t ClaimType) (Details, bool) {
	switch t {
	case ClaimTravel:
		return &TravelDetails{}, true
	case ClaimBusinessPromotion:
		return &BusinessPromotionDetails{}, true
	case ClaimConveyance:
		return &ConveyanceDetails{}, true
	case ClaimMobileBill:
		return &MobileBillDetails{}, true
	case ClaimRelocation:
		return &RelocationDetails{}, true
	case ClaimOther:
		return &OtherDetails{}, true
	}
	return nil, false
}

// ParseDetails строго декодирует raw в вариант для t и валидирует его.
// Лишние поля и пустой payload — ошибка.
func ParseDetails(t ClaimType, raw []byte) (Details, error) {
	d, ok := newDetails(t)
	if !ok {
		return nil, fmt.Errorf("%w: unknown claim type %q", ErrInvalidDetails, t)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: details are required for %s", ErrInvalidDetails, t)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	if err := ValidateStruct(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	if err := d.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	return d, nil
}

// EncodeDetails — каноничное JSON-представление варианта для хранения.
func EncodeDetails(d Details) (datatypes.JSON, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
