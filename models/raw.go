package models

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// UnknownCity is the hardcoded default when neither shape carries a city and
// address normalization finds nothing.
const UnknownCity = "Unknown"

// DefaultCategory is applied when a submission carries no category.
const DefaultCategory = "general"

// RawComplaint accepts a citizen submission in either historical shape.
//
// Flat shape:   {"category": ..., "city": ..., "pincode": ..., "lat": ..., "lng": ...,
//                "name": ..., "phone": ..., "address": ..., "status": ..., "createdAt": ...}
// Nested shape: {"location": {"city": ..., "pincode": ..., "address": ...,
//                "coordinates": {"lat": ..., "lng": ...}}, "user": {"id": ..., "name": ..., "phone": ...}}
//
// Nested fields take precedence, flat fields are the fallback, and hardcoded
// defaults apply when both are absent. Parsing is total: any JSON object decodes
// into a usable RawComplaint.
type RawComplaint struct {
	ID          string
	Category    string
	City        string
	State       string
	Pincode     string
	Description string
	Address     string
	Status      string
	ImageURL    string
	SubmitterID string
	Name        string
	Phone       string
	Latitude    *float64
	Longitude   *float64
	CreatedAt   *time.Time
}

// flexString tolerates string or numeric JSON values (ids and phone numbers
// appear as both in the historical data).
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// flexTime tolerates RFC3339 strings, plain datetime strings, and epoch
// seconds/milliseconds.
type flexTime struct {
	t  time.Time
	ok bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				f.t, f.ok = t.UTC(), true
				return nil
			}
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil && n > 0 {
		// Epoch milliseconds when the magnitude says so
		if n > 1e12 {
			f.t = time.UnixMilli(int64(n)).UTC()
		} else {
			f.t = time.Unix(int64(n), 0).UTC()
		}
		f.ok = true
	}
	return nil
}

type rawCoordinates struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type rawLocation struct {
	City        flexString      `json:"city"`
	State       flexString      `json:"state"`
	Pincode     flexString      `json:"pincode"`
	Address     flexString      `json:"address"`
	Coordinates *rawCoordinates `json:"coordinates"`
}

type rawUser struct {
	ID    flexString `json:"id"`
	Name  flexString `json:"name"`
	Phone flexString `json:"phone"`
}

type rawComplaintWire struct {
	ID           flexString   `json:"id"`
	Category     flexString   `json:"category"`
	City         flexString   `json:"city"`
	State        flexString   `json:"state"`
	Pincode      flexString   `json:"pincode"`
	Description  flexString   `json:"description"`
	Address      flexString   `json:"address"`
	Status       flexString   `json:"status"`
	ImageURL     flexString   `json:"imageUrl"`
	ImageURLAlt  flexString   `json:"image_url"`
	SubmitterID  flexString   `json:"submitterId"`
	Name         flexString   `json:"name"`
	Phone        flexString   `json:"phone"`
	Lat          *float64     `json:"lat"`
	Lng          *float64     `json:"lng"`
	CreatedAt    *flexTime    `json:"createdAt"`
	CreatedAtAlt *flexTime    `json:"created_at"`
	Location     *rawLocation `json:"location"`
	User         *rawUser     `json:"user"`
}

// UnmarshalJSON decodes either shape, preferring nested fields over flat ones.
func (r *RawComplaint) UnmarshalJSON(data []byte) error {
	var wire rawComplaintWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.ID = string(wire.ID)
	r.Category = string(wire.Category)
	r.Description = string(wire.Description)
	r.Status = string(wire.Status)
	r.SubmitterID = string(wire.SubmitterID)

	r.City = string(wire.City)
	r.State = string(wire.State)
	r.Pincode = string(wire.Pincode)
	r.Address = string(wire.Address)
	r.Name = string(wire.Name)
	r.Phone = string(wire.Phone)
	r.Latitude = wire.Lat
	r.Longitude = wire.Lng

	r.ImageURL = string(wire.ImageURL)
	if r.ImageURL == "" {
		r.ImageURL = string(wire.ImageURLAlt)
	}

	if wire.Location != nil {
		if city := string(wire.Location.City); city != "" {
			r.City = city
		}
		if state := string(wire.Location.State); state != "" {
			r.State = state
		}
		if pincode := string(wire.Location.Pincode); pincode != "" {
			r.Pincode = pincode
		}
		if address := string(wire.Location.Address); address != "" {
			r.Address = address
		}
		if wire.Location.Coordinates != nil {
			if wire.Location.Coordinates.Lat != nil {
				r.Latitude = wire.Location.Coordinates.Lat
			}
			if wire.Location.Coordinates.Lng != nil {
				r.Longitude = wire.Location.Coordinates.Lng
			}
		}
	}

	if wire.User != nil {
		if id := string(wire.User.ID); id != "" {
			r.SubmitterID = id
		}
		if name := string(wire.User.Name); name != "" {
			r.Name = name
		}
		if phone := string(wire.User.Phone); phone != "" {
			r.Phone = phone
		}
	}

	created := wire.CreatedAt
	if created == nil || !created.ok {
		created = wire.CreatedAtAlt
	}
	if created != nil && created.ok {
		t := created.t
		r.CreatedAt = &t
	}

	return nil
}

// Canonicalize produces the canonical Complaint. Defaults: category "general"
// (lower-cased, trimmed), city "Unknown", status normalized through the enum,
// createdAt falling back to now. The address normalizer may later refine an
// "Unknown" city from the full address; everything else is final here.
func (r *RawComplaint) Canonicalize(now time.Time) Complaint {
	category := strings.ToLower(strings.TrimSpace(r.Category))
	if category == "" {
		category = DefaultCategory
	}

	city := strings.TrimSpace(r.City)
	if city == "" {
		city = UnknownCity
	}

	createdAt := now
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		createdAt = *r.CreatedAt
	}

	c := Complaint{
		Category:    category,
		City:        city,
		Description: strings.TrimSpace(r.Description),
		Status:      NormalizeStatus(r.Status),
		CreatedAt:   createdAt,
	}

	if state := strings.TrimSpace(r.State); state != "" {
		c.State = sql.NullString{String: state, Valid: true}
	}
	if pincode := normalizePincode(r.Pincode); pincode != "" {
		c.Pincode = sql.NullString{String: pincode, Valid: true}
	}
	if address := strings.TrimSpace(r.Address); address != "" {
		c.FullAddress = sql.NullString{String: address, Valid: true}
	}
	if id := strings.TrimSpace(r.SubmitterID); id != "" {
		c.SubmitterID = sql.NullString{String: id, Valid: true}
	}
	if name := strings.TrimSpace(r.Name); name != "" {
		c.SubmitterName = sql.NullString{String: name, Valid: true}
	}
	if phone := strings.TrimSpace(r.Phone); phone != "" {
		c.SubmitterPhone = sql.NullString{String: phone, Valid: true}
	}
	if url := strings.TrimSpace(r.ImageURL); url != "" {
		c.ImageURL = sql.NullString{String: url, Valid: true}
	}
	if r.Latitude != nil {
		c.Latitude = sql.NullFloat64{Float64: *r.Latitude, Valid: true}
	}
	if r.Longitude != nil {
		c.Longitude = sql.NullFloat64{Float64: *r.Longitude, Valid: true}
	}

	return c
}

// normalizePincode keeps only a plausible 6-digit pincode
func normalizePincode(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) != 6 {
		return ""
	}
	if _, err := strconv.Atoi(s); err != nil {
		return ""
	}
	return s
}
