package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/vetcare-appointments/internal/history"
	"github.com/hackgods/vetcare-appointments/internal/identity"
	"github.com/hackgods/vetcare-appointments/internal/metrics"
	redisclient "github.com/hackgods/vetcare-appointments/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentResponded = "APPOINTMENT_RESPONDED"
	EventPaymentUpdated       = "APPOINTMENT_PAYMENT_UPDATED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	repo     Repository
	recorder history.Recorder
	locker   redisclient.Locker
	metrics  *metrics.Collector
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, recorder history.Recorder, locker redisclient.Locker, m *metrics.Collector, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		locker:   locker,
		metrics:  m,
		log:      logger.With().Str("component", "appointment").Logger(),
		now:      time.Now,
	}
}

// CreateAppointment books a new Scheduled appointment for the calling owner.
func (s *Service) CreateAppointment(ctx context.Context, caller identity.Caller, in CreateInput) (appt *Appointment, err error) {
	defer func() { s.observe("create", err) }()

	if !caller.CanRespondAsOwner() {
		return nil, fmt.Errorf("%w: only pet owners can book appointments", ErrForbidden)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	date, err := parseDate(in.AppointmentDate)
	if err != nil {
		return nil, err
	}

	doctor, err := s.repo.GetUserByID(ctx, in.DoctorID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return nil, invalidField("doctor_id", "does not reference a doctor")
	case err != nil:
		return nil, fmt.Errorf("load doctor: %w", err)
	case doctor.Role != identity.RoleDoctor:
		return nil, invalidField("doctor_id", "does not reference a doctor")
	}

	pet, err := s.repo.GetPetByID(ctx, in.PetID)
	switch {
	case errors.Is(err, ErrPetNotFound):
		return nil, invalidField("pet_id", "does not reference one of your pets")
	case err != nil:
		return nil, fmt.Errorf("load pet: %w", err)
	case pet.OwnerID != caller.UserID():
		return nil, invalidField("pet_id", "does not reference one of your pets")
	}

	appt, err = s.repo.CreateAppointment(ctx, NewAppointment{
		DoctorID:        in.DoctorID,
		OwnerID:         caller.UserID(),
		PetID:           in.PetID,
		AppointmentDate: date,
		AppointmentTime: in.AppointmentTime,
		AppointmentType: in.AppointmentType,
		Charges:         *in.Charges,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"owner_id":         appt.OwnerID.String(),
		"doctor_id":        appt.DoctorID.String(),
		"pet_id":           appt.PetID.String(),
		"appointment_date": in.AppointmentDate,
		"appointment_time": appt.AppointmentTime,
		"appointment_type": appt.AppointmentType,
		"charges":          appt.Charges,
	})

	return appt, nil
}

// GetAppointment returns a hydrated appointment. Callers who may not read it
// get ErrAppointmentNotFound so existence is not disclosed.
func (s *Service) GetAppointment(ctx context.Context, caller identity.Caller, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if CanRead(caller, &detail.Appointment) != nil {
		return nil, ErrAppointmentNotFound
	}
	return detail, nil
}

// ListOwnerAppointments lists the caller's own bookings in schedule order.
func (s *Service) ListOwnerAppointments(ctx context.Context, caller identity.Caller, status *Status, limit, offset int) ([]AppointmentDetail, error) {
	if !caller.CanRespondAsOwner() {
		return nil, fmt.Errorf("%w: owner view requires the owner role", ErrForbidden)
	}
	ownerID := caller.UserID()
	return s.list(ctx, Filter{OwnerID: &ownerID, Status: status, Order: OrderSchedule, Limit: limit, Offset: offset})
}

// ListDoctorAppointments lists appointments assigned to the calling doctor in schedule order.
func (s *Service) ListDoctorAppointments(ctx context.Context, caller identity.Caller, status *Status, limit, offset int) ([]AppointmentDetail, error) {
	if !caller.CanRespondAsDoctor() {
		return nil, fmt.Errorf("%w: doctor view requires the doctor role", ErrForbidden)
	}
	doctorID := caller.UserID()
	return s.list(ctx, Filter{DoctorID: &doctorID, Status: status, Order: OrderSchedule, Limit: limit, Offset: offset})
}

// ListAppointments is the unscoped administrative view, newest first.
func (s *Service) ListAppointments(ctx context.Context, caller identity.Caller, f Filter) ([]AppointmentDetail, error) {
	if !caller.CanAudit() {
		return nil, fmt.Errorf("%w: listing all appointments requires the admin role", ErrForbidden)
	}
	f.Order = OrderNewest
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f Filter) ([]AppointmentDetail, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown status %q", *f.Status))
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	result, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if result == nil {
		result = []AppointmentDetail{}
	}
	return result, nil
}

// DoctorRespond lets the assigned doctor accept, reschedule or cancel.
// Rescheduling replaces the date and time with the ones in resched.
func (s *Service) DoctorRespond(ctx context.Context, caller identity.Caller, id uuid.UUID, status Status, resched *RescheduleInput) (appt *Appointment, err error) {
	defer func() { s.observe("doctor_respond", err) }()

	if !caller.CanRespondAsDoctor() {
		return nil, fmt.Errorf("%w: doctor response requires the doctor role", ErrForbidden)
	}
	if !status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown status %q", status))
	}
	if status == StatusCompleted {
		return nil, invalidField("status", "appointments are completed through the completion operation")
	}
	if !containsStatus(doctorRequestable, status) {
		return nil, fmt.Errorf("%w: doctors may not request %s", ErrForbidden, status)
	}

	patch := Patch{Status: &status}
	if status == StatusRescheduled {
		if resched == nil {
			return nil, &ValidationError{Fields: map[string]string{
				"appointment_date": "is required when rescheduling",
				"appointment_time": "is required when rescheduling",
			}}
		}
		if err := validateStruct(resched); err != nil {
			return nil, err
		}
		date, err := parseDate(resched.AppointmentDate)
		if err != nil {
			return nil, err
		}
		t := resched.AppointmentTime
		patch.AppointmentDate = &date
		patch.AppointmentTime = &t
	}

	var from Status
	appt, err = s.mutate(ctx, id, func(lockCtx context.Context, current *Appointment) (*Appointment, error) {
		if err := CanAct(caller, current, status); err != nil {
			return nil, err
		}
		from = current.Status
		return s.apply(lockCtx, current, patch)
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, appt, caller, from)
	return appt, nil
}

// OwnerRespond lets the owner accept (including a doctor's proposed new
// time) or cancel. Requesting Scheduled on a Scheduled appointment is a no-op.
func (s *Service) OwnerRespond(ctx context.Context, caller identity.Caller, id uuid.UUID, status Status) (appt *Appointment, err error) {
	defer func() { s.observe("owner_respond", err) }()

	if !caller.CanRespondAsOwner() {
		return nil, fmt.Errorf("%w: owner response requires the owner role", ErrForbidden)
	}
	if !status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown status %q", status))
	}
	if !containsStatus(ownerRequestable, status) {
		return nil, fmt.Errorf("%w: owners may not request %s", ErrForbidden, status)
	}

	var (
		from    Status
		changed bool
	)
	appt, err = s.mutate(ctx, id, func(lockCtx context.Context, current *Appointment) (*Appointment, error) {
		if status == StatusScheduled && current.Status == StatusScheduled {
			if !isOwner(caller, current) {
				return nil, fmt.Errorf("%w: not the appointment owner", ErrForbidden)
			}
			return current, nil
		}
		if err := CanAct(caller, current, status); err != nil {
			return nil, err
		}
		from = current.Status
		changed = true
		return s.apply(lockCtx, current, Patch{Status: &status})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logTransition(ctx, appt, caller, from)
	}
	return appt, nil
}

// CancelAppointment moves a non-terminal appointment to Cancelled on behalf
// of its owner or doctor.
func (s *Service) CancelAppointment(ctx context.Context, caller identity.Caller, id uuid.UUID) (appt *Appointment, err error) {
	defer func() { s.observe("cancel", err) }()

	cancelled := StatusCancelled
	var from Status
	appt, err = s.mutate(ctx, id, func(lockCtx context.Context, current *Appointment) (*Appointment, error) {
		if err := CanAct(caller, current, cancelled); err != nil {
			return nil, err
		}
		from = current.Status
		return s.apply(lockCtx, current, Patch{Status: &cancelled})
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, appt, caller, from)
	return appt, nil
}

// SetPaid flips the payment flag without touching status.
func (s *Service) SetPaid(ctx context.Context, caller identity.Caller, id uuid.UUID, paid bool) (appt *Appointment, err error) {
	defer func() { s.observe("set_paid", err) }()

	changed := false
	appt, err = s.mutate(ctx, id, func(lockCtx context.Context, current *Appointment) (*Appointment, error) {
		if err := CanSetPaid(caller, current); err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return nil, fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, current.Status)
		}
		if current.IsPaid == paid {
			return current, nil
		}
		changed = true
		return s.apply(lockCtx, current, Patch{IsPaid: &paid})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logEvent(ctx, appt.ID, EventPaymentUpdated, map[string]any{
			"is_paid": paid,
			"by_role": caller.Role(),
			"by_user": caller.UserID().String(),
		})
	}
	return appt, nil
}

// CompleteAppointment marks the appointment Completed with its clinical notes
// and records the visit in the medical history. The store writes both in one
// unit of work, so a failure leaves neither behind.
func (s *Service) CompleteAppointment(ctx context.Context, caller identity.Caller, id uuid.UUID, in CompleteInput) (appt *Appointment, rec *history.Record, err error) {
	defer func() { s.observe("complete", err) }()

	if !caller.CanRespondAsDoctor() {
		return nil, nil, fmt.Errorf("%w: completion requires the doctor role", ErrForbidden)
	}
	if err := validateStruct(in); err != nil {
		return nil, nil, err
	}

	appt, err = s.mutate(ctx, id, func(lockCtx context.Context, current *Appointment) (*Appointment, error) {
		if err := CanAct(caller, current, StatusCompleted); err != nil {
			return nil, err
		}
		if !current.IsPaid {
			return nil, ErrPaymentRequired
		}

		visit := current.AppointmentDate
		if visit.IsZero() {
			visit = s.now()
		}

		diagnosis, treatment, prescriptions := in.Diagnosis, in.Treatment, in.Prescriptions
		updated, written, err := s.repo.CompleteAppointment(lockCtx, current.ID, current.Status, Patch{
			Diagnosis:     &diagnosis,
			Treatment:     &treatment,
			Prescriptions: &prescriptions,
		}, history.Record{
			PetID:         current.PetID,
			DoctorID:      current.DoctorID,
			AppointmentID: current.ID,
			VisitDate:     visit,
			Diagnosis:     in.Diagnosis,
			Treatment:     in.Treatment,
			Prescriptions: in.Prescriptions,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrStatusChanged):
				return nil, ErrConflict
			case errors.Is(err, ErrAppointmentNotFound):
				return nil, err
			}
			s.log.Error().Err(err).Str("appointment_id", current.ID.String()).Msg("complete appointment failed")
			return nil, fmt.Errorf("%w: %w", ErrDependencyFailure, err)
		}

		rec = written
		return updated, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.RecordHistoryWritten()
	s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{
		"doctor_id":  caller.UserID().String(),
		"history_id": rec.ID.String(),
	})
	return appt, rec, nil
}

// ListPetHistory returns the medical history of a pet to its owner, to
// doctors and to auditors.
func (s *Service) ListPetHistory(ctx context.Context, caller identity.Caller, petID uuid.UUID) ([]history.Record, error) {
	pet, err := s.repo.GetPetByID(ctx, petID)
	if err != nil {
		if errors.Is(err, ErrPetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}

	allowed := caller.CanAudit() || caller.CanRespondAsDoctor() ||
		(caller.CanRespondAsOwner() && pet.OwnerID == caller.UserID())
	if !allowed {
		return nil, ErrPetNotFound
	}

	records, err := s.recorder.ListByPet(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("list medical history: %w", err)
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}

type AuditReport struct {
	Checked int
	Missing []uuid.UUID
}

// AuditCompletions finds Completed appointments lacking a medical history record.
func (s *Service) AuditCompletions(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{}
	completed := StatusCompleted

	for offset := 0; ; offset += maxListLimit {
		page, err := s.repo.ListAppointments(ctx, Filter{
			Status: &completed,
			Order:  OrderNewest,
			Limit:  maxListLimit,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list completed appointments: %w", err)
		}

		for _, a := range page {
			report.Checked++
			_, err := s.recorder.GetByAppointment(ctx, a.ID)
			if errors.Is(err, history.ErrRecordNotFound) {
				report.Missing = append(report.Missing, a.ID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("load medical history for %s: %w", a.ID, err)
			}
		}

		if len(page) < maxListLimit {
			break
		}
	}

	s.metrics.RecordAudit(len(report.Missing))
	return report, nil
}

// mutate runs fn against a fresh read of the appointment while holding its lock.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, current *Appointment) (*Appointment, error)) (*Appointment, error) {
	var result *Appointment

	err := s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		current, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		result, err = fn(lockCtx, current)
		return err
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrConflict
		}
		return nil, err
	}

	return result, nil
}

// apply writes patch guarded by the status that was read.
func (s *Service) apply(ctx context.Context, current *Appointment, patch Patch) (*Appointment, error) {
	updated, err := s.repo.UpdateAppointment(ctx, current.ID, current.Status, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrStatusChanged):
			return nil, ErrConflict
		case errors.Is(err, ErrAppointmentNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("update appointment: %w", err)
		}
	}
	return updated, nil
}

func (s *Service) logTransition(ctx context.Context, appt *Appointment, caller identity.Caller, from Status) {
	eventType := EventAppointmentResponded
	if appt.Status == StatusCancelled {
		eventType = EventAppointmentCancelled
	}

	payload := map[string]any{
		"from":    from,
		"to":      appt.Status,
		"by_role": caller.Role(),
		"by_user": caller.UserID().String(),
	}
	if appt.Status == StatusRescheduled {
		payload["appointment_date"] = appt.AppointmentDate.Format(dateLayout)
		payload["appointment_time"] = appt.AppointmentTime
	}

	s.logEvent(ctx, appt.ID, eventType, payload)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}

func (s *Service) observe(action string, err error) {
	s.metrics.RecordTransition(action, Outcome(err))
}

// Outcome classifies an error from the service into a short label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDependencyFailure):
		return "dependency_failure"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPaymentRequired):
		return "payment_required"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAppointmentNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
