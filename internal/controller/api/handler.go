// Package api is the JSON API of the booking site.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/holidays"
	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/policy"
	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

const (
	HeaderAdminKey     = "X-Admin-Key"
	HeaderBookingToken = "X-Booking-Token"
	// HeaderStudentID names the signed-in student. It is honoured only together with the
	// admin key, i.e. from the site backend after it authenticated the student.
	HeaderStudentID = "X-Student-ID"
)

type Availability interface {
	AvailableDates(ctx context.Context) ([]string, error)
	AvailableSlots(ctx context.Context, dateStr string, sessionType model.SessionTypeConfig) ([]model.TimeSlot, error)
}

type Bookings interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	CancelBooking(ctx context.Context, id int64) (policy.CancelResult, *model.Booking, error)
	RescheduleBooking(ctx context.Context, id int64, dateStr, start string) (policy.RescheduleResult, *model.Booking, error)
	PolicyPreview(ctx context.Context, id int64) (service.PolicyPreview, error)
	Transition(ctx context.Context, id int64, to model.BookingStatus) (*model.Booking, error)
}

type Overrides interface {
	Set(ctx context.Context, dateStr string, in service.OverrideInput) (*model.AvailabilityOverride, error)
	Delete(ctx context.Context, dateStr string) (bool, error)
	List(ctx context.Context, fromStr, toStr string) ([]*model.AvailabilityOverride, error)
}

type Settings interface {
	Get(ctx context.Context) (model.SiteSettings, error)
	Update(ctx context.Context, s model.SiteSettings) (model.SiteSettings, error)
}

type Handler struct {
	availability Availability
	bookings     Bookings
	overrides    Overrides
	settings     Settings
	holidays     *holidays.Calendar
	adminKey     string
	logger       *zap.Logger
}

func NewHandler(
	availability Availability,
	bookings Bookings,
	overrides Overrides,
	settings Settings,
	calendar *holidays.Calendar,
	adminKey string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		availability: availability,
		bookings:     bookings,
		overrides:    overrides,
		settings:     settings,
		holidays:     calendar,
		adminKey:     adminKey,
		logger:       logger,
	}
}

func (h *Handler) isAdmin(r *http.Request) bool {
	key := r.Header.Get(HeaderAdminKey)
	return h.adminKey != "" && key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) == 1
}

// requireAdmin guards the admin routes. Without a configured key they are closed.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAdmin(r) {
			h.logger.Warn("Rejected admin request",
				zap.String("ip", r.RemoteAddr),
				zap.String("path", r.URL.Path),
			)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid admin key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bookingID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrBookingNotFound
	}
	return id, nil
}

// authorizedBooking loads the booking of the request. Clients prove ownership with the
// confirmation token they received on creation; admins with their key. A wrong token
// looks the same as a missing booking.
func (h *Handler) authorizedBooking(w http.ResponseWriter, r *http.Request) (*model.Booking, bool) {
	id, err := bookingID(r)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}

	b, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}

	if h.isAdmin(r) {
		return b, true
	}
	token := r.Header.Get(HeaderBookingToken)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(b.ConfirmationToken)) != 1 {
		h.writeError(w, r, service.ErrBookingNotFound)
		return nil, false
	}
	return b, true
}

type datesResponse struct {
	Dates []string `json:"dates"`
}

func (h *Handler) availableDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.availability.AvailableDates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datesResponse{Dates: dates})
}

type slotsResponse struct {
	Date        string            `json:"date"`
	SessionType model.SessionType `json:"session_type"`
	Slots       []model.TimeSlot  `json:"slots"`
}

func (h *Handler) availableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg, err := model.LookupSessionType(model.SessionType(q.Get("type")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	date := q.Get("date")
	slots, err := h.availability.AvailableSlots(r.Context(), date, cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{Date: date, SessionType: cfg.Type, Slots: slots})
}

func (h *Handler) sessionTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.SessionTypes())
}

type createBookingBody struct {
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email"`
	SessionType model.SessionType `json:"session_type"`
	Date        string            `json:"date"`
	StartTime   string            `json:"start_time"`
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	req := service.CreateBookingRequest{
		ClientName:  body.ClientName,
		ClientEmail: body.ClientEmail,
		SessionType: body.SessionType,
		Date:        body.Date,
		StartTime:   body.StartTime,
	}
	if raw := r.Header.Get(HeaderStudentID); raw != "" && h.isAdmin(r) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + HeaderStudentID})
			return
		}
		req.StudentID = &id
	}

	b, err := h.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorizedBooking(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) bookingPolicy(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorizedBooking(w, r)
	if !ok {
		return
	}
	preview, err := h.bookings.PolicyPreview(r.Context(), b.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type cancelResponse struct {
	Result  policy.CancelResult `json:"result"`
	Booking *model.Booking      `json:"booking"`
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorizedBooking(w, r)
	if !ok {
		return
	}

	res, booking, err := h.bookings.CancelBooking(r.Context(), b.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Allowed {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: res.Reason, Result: res})
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Result: res, Booking: booking})
}

type rescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type rescheduleResponse struct {
	Result  policy.RescheduleResult `json:"result"`
	Booking *model.Booking          `json:"booking"`
}

func (h *Handler) rescheduleBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorizedBooking(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, booking, err := h.bookings.RescheduleBooking(r.Context(), b.ID, req.Date, req.StartTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Allowed {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: res.Reason, Result: res})
		return
	}
	writeJSON(w, http.StatusOK, rescheduleResponse{Result: res, Booking: booking})
}

type holidayItem struct {
	Date     string `json:"date"`
	Name     string `json:"name"`
	Observed bool   `json:"observed"`
}

type holidaysResponse struct {
	Year     int           `json:"year"`
	Holidays []holidayItem `json:"holidays"`
}

func (h *Handler) publicHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 2200 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "year must be between 1900 and 2200"})
		return
	}

	list := h.holidays.PublicHolidays(year)
	items := make([]holidayItem, len(list))
	for i, hd := range list {
		items[i] = holidayItem{Date: timeutil.FormatDate(hd.Date), Name: hd.Name, Observed: hd.Observed}
	}
	writeJSON(w, http.StatusOK, holidaysResponse{Year: year, Holidays: items})
}

func (h *Handler) listOverrides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overrides, err := h.overrides.List(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overrides)
}

func (h *Handler) putOverride(w http.ResponseWriter, r *http.Request) {
	var in service.OverrideInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.overrides.Set(r.Context(), chi.URLParam(r, "date"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOverride(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.overrides.Delete(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no override on this date"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status model.BookingStatus `json:"status"`
}

func (h *Handler) setBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	b, err := h.bookings.Transition(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var in model.SiteSettings
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	s, err := h.settings.Update(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
