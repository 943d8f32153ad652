package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"workshopportal/internal/dto"
	"workshopportal/internal/model"
	"workshopportal/internal/qr"
	"workshopportal/internal/repo"
	"workshopportal/internal/report"
	"workshopportal/internal/session"
	"workshopportal/pkg/validator"
)

// Notifier delivers the registration confirmation. Implementations may fail;
// the registration outcome never depends on it.
type Notifier interface {
	Notify(ctx context.Context, name, email, workshop string) error
}

type Service interface {
	Workshops(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	QRCode(ctx *ginext.Context)

	Login(ctx *ginext.Context)
	Logout(ctx *ginext.Context)
	AdminStatus(ctx *ginext.Context)

	ListRegistrations(ctx *ginext.Context)
	DeleteRegistration(ctx *ginext.Context)
	Summary(ctx *ginext.Context)
	Chart(ctx *ginext.Context)
	ExportCSV(ctx *ginext.Context)
	ExportToDisk(ctx *ginext.Context)
}

type Options struct {
	AdminPassword string
	ExportDir     string
}

type service struct {
	repo     repo.Repository
	log      *zerolog.Logger
	notifier Notifier
	opts     Options
}

func NewService(repo repo.Repository, logger *zerolog.Logger, notifier Notifier, opts Options) Service {
	return &service{
		repo:     repo,
		log:      logger,
		notifier: notifier,
		opts:     opts,
	}
}

func (s *service) Workshops(ctx *ginext.Context) {
	dto.SuccessResponse(ctx, model.Workshops())
}

func (s *service) Register(ctx *ginext.Context) {
	var req dto.CreateRegistrationRequest
	if err := ctx.ShouldBind(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse registration request")
		dto.FieldIncorrectError(ctx, "Invalid request format")
		return
	}

	if verr := validator.Validate(ctx.Request.Context(), req); verr != nil {
		s.log.Info().Msgf("registration rejected: %v", verr)
		dto.FieldIncorrectError(ctx, "Please fill out all fields. "+verr.Error())
		return
	}

	reg := toRegistration(req)
	id, err := s.repo.Create(ctx.Request.Context(), &reg)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			dto.EmailAlreadyRegisteredError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to create registration")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().
		Int64("registration_id", id).
		Str("workshop", reg.Workshop).
		Msg("registration created successfully")

	resp := dto.RegistrationResponse{
		ID:        id,
		Name:      reg.Name,
		Workshop:  reg.Workshop,
		QRPayload: reg.QRPayload(),
	}

	if s.notify(ctx.Request.Context(), reg) {
		resp.Notice = "A confirmation email has been sent to " + reg.Email + "."
	}

	png, err := qr.Encode(resp.QRPayload)
	if err != nil {
		s.log.Error().Err(err).Int64("registration_id", id).Msg("failed to encode qr code")
	} else {
		resp.QRCode = base64.StdEncoding.EncodeToString(png)
	}

	dto.SuccessCreatedResponse(ctx, resp)
}

// notify reports whether the confirmation went out. Failures are logged and
// otherwise dropped.
func (s *service) notify(ctx context.Context, reg model.Registration) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), reg.Name, reg.Email, reg.Workshop); err != nil {
		s.log.Warn().
			Err(err).
			Int64("registration_id", reg.ID).
			Msg("confirmation email not delivered")
		return false
	}
	return true
}

func toRegistration(req dto.CreateRegistrationRequest) model.Registration {
	reg := model.Registration{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Institution: req.Institution,
		Course:      req.Course,
		Workshop:    req.Workshop,
	}
	if ref := strings.TrimSpace(req.Referrer); ref != "" {
		reg.Referrer = &ref
	}
	return reg
}

func (s *service) QRCode(ctx *ginext.Context) {
	text := ctx.Query("text")
	if text == "" {
		dto.FieldIncorrectError(ctx, "Field 'text' is required")
		return
	}

	png, err := qr.Encode(text)
	if err != nil {
		if errors.Is(err, qr.ErrTextTooLong) {
			dto.FieldIncorrectError(ctx, fmt.Sprintf("Field 'text' exceeds %d bytes", qr.MaxTextLength))
			return
		}
		s.log.Error().Err(err).Msg("failed to encode qr code")
		dto.InternalServerError(ctx)
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.FieldIncorrectError(ctx, "Invalid request format")
		return
	}

	if !session.PasswordMatches(s.opts.AdminPassword, req.Password) {
		s.log.Warn().Str("client_ip", ctx.ClientIP()).Msg("admin login denied")
		dto.AccessDeniedError(ctx)
		return
	}

	if err := session.SetAdmin(ctx, true); err != nil {
		s.log.Error().Err(err).Msg("failed to save admin session")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("client_ip", ctx.ClientIP()).Msg("admin access granted")
	dto.SuccessResponse(ctx, gin.H{"admin": true})
}

func (s *service) Logout(ctx *ginext.Context) {
	if err := session.SetAdmin(ctx, false); err != nil {
		s.log.Error().Err(err).Msg("failed to clear admin session")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, gin.H{"admin": false})
}

func (s *service) AdminStatus(ctx *ginext.Context) {
	dto.SuccessResponse(ctx, gin.H{"admin": session.IsAdmin(ctx)})
}

func (s *service) ListRegistrations(ctx *ginext.Context) {
	regs, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.AdminRegistration, 0, len(regs))
	for _, r := range regs {
		resp = append(resp, dto.AdminRegistration{
			ID:          r.ID,
			Label:       fmt.Sprintf("%d - %s", r.ID, r.Name),
			Name:        r.Name,
			Email:       r.Email,
			Phone:       r.Phone,
			Institution: r.Institution,
			Course:      r.Course,
			Workshop:    r.Workshop,
			Referrer:    r.Referrer,
		})
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) DeleteRegistration(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.FieldIncorrectError(ctx, "Invalid registration ID")
		return
	}

	if err := s.repo.DeleteByID(ctx.Request.Context(), id); err != nil {
		s.log.Error().Err(err).Int64("registration_id", id).Msg("failed to delete registration")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("registration_id", id).Msg("registration deleted")
	dto.SuccessResponse(ctx, gin.H{"deleted": id})
}

func (s *service) Summary(ctx *ginext.Context) {
	regs, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations for summary")
		dto.InternalServerError(ctx)
		return
	}

	counts := report.AggregateByWorkshop(regs)
	dto.SuccessResponse(ctx, dto.SummaryResponse{
		Total:     len(regs),
		Workshops: counts,
		NoData:    len(counts) == 0,
	})
}

func (s *service) Chart(ctx *ginext.Context) {
	regs, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations for chart")
		dto.InternalServerError(ctx)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderChart(&buf, report.AggregateByWorkshop(regs)); err != nil {
		if errors.Is(err, report.ErrNoData) {
			dto.NoDataError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to render chart")
		dto.InternalServerError(ctx)
		return
	}

	if ctx.Query("download") != "" {
		ctx.Header("Content-Disposition", "attachment; filename="+report.ChartFileName)
	}
	ctx.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *service) ExportCSV(ctx *ginext.Context) {
	regs, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations for export")
		dto.InternalServerError(ctx)
		return
	}

	data, err := report.ToCSV(regs)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to build csv export")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int("rows", len(regs)).Msg("csv exported")
	ctx.Header("Content-Disposition", "attachment; filename="+report.CSVFileName)
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (s *service) ExportToDisk(ctx *ginext.Context) {
	regs, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations for export")
		dto.InternalServerError(ctx)
		return
	}

	path, err := report.WriteCSVFile(s.opts.ExportDir, regs)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to write csv export")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("path", path).Int("rows", len(regs)).Msg("csv written to disk")
	dto.SuccessResponse(ctx, dto.ExportResponse{Path: path, Rows: len(regs)})
}
