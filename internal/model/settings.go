package model

const (
	DefaultMaxAdvanceDays = 60
	DefaultMinNoticeHours = 24
	DefaultBufferMinutes  = 15
)

// SiteSettings is the booking part of the site configuration.
type SiteSettings struct {
	BookingEnabled        bool          `json:"booking_enabled"`
	BookingMaxAdvanceDays int           `json:"booking_max_advance_days"`
	BookingMinNoticeHours int           `json:"booking_min_notice_hours"`
	BookingBufferMinutes  int           `json:"booking_buffer_minutes"`
	BusinessHours         BusinessHours `json:"business_hours"`
}

// DefaultSiteSettings is used when no settings row exists.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		BookingEnabled:        true,
		BookingMaxAdvanceDays: DefaultMaxAdvanceDays,
		BookingMinNoticeHours: DefaultMinNoticeHours,
		BookingBufferMinutes:  DefaultBufferMinutes,
		BusinessHours:         DefaultBusinessHours(),
	}
}

// WithDefaults fills unset or invalid values.
func (s SiteSettings) WithDefaults() SiteSettings {
	if s.BookingMaxAdvanceDays <= 0 {
		s.BookingMaxAdvanceDays = DefaultMaxAdvanceDays
	}
	if s.BookingMinNoticeHours < 0 {
		s.BookingMinNoticeHours = DefaultMinNoticeHours
	}
	if s.BookingBufferMinutes < 0 {
		s.BookingBufferMinutes = DefaultBufferMinutes
	}
	if len(s.BusinessHours) == 0 {
		s.BusinessHours = DefaultBusinessHours()
	}
	return s
}
