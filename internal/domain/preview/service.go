package preview

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"go.uber.org/zap"
)

// CreateRequest starts a preview session.
type CreateRequest struct {
	URL      string
	ClientID string
	Device   screenshot.Device
	Mode     Mode
	Bypass   bool
}

// Service is the session-level preview API.
type Service struct {
	orch      *Orchestrator
	sessions  *Manager
	shares    *Shares
	publicURL string
	logger    *zap.Logger
}

// NewService wires the session API. publicURL is the externally visible
// base of this gateway, used to build preview and share links.
func NewService(orch *Orchestrator, sessions *Manager, shares *Shares, publicURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orch:      orch,
		sessions:  sessions,
		shares:    shares,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Sessions returns the session registry.
func (s *Service) Sessions() *Manager {
	return s.sessions
}

// Create registers a session and runs it. A rejected URL is an error and
// leaves no session behind; any other failure is reported through the
// session's status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeAuto
	}
	sess := s.sessions.Create(Target{
		URL:      req.URL,
		ClientID: req.ClientID,
		Device:   screenshot.ParseDevice(string(req.Device)),
		Bypass:   req.Bypass,
	}, mode)

	if err := s.orch.Start(ctx, sess); err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.Terminal() {
			s.sessions.Delete(sess.ID)
			return nil, perr
		}
	}

	st := sess.Status()
	s.logger.Info("Preview session created",
		zap.String("preview_id", sess.ID),
		zap.String("url", req.URL),
		zap.String("client_id", req.ClientID),
		zap.String("state", string(st.State)),
		zap.String("method", string(st.Method)),
	)
	return sess, nil
}

// Get returns a live session or a not-found error.
func (s *Service) Get(previewID string) (*Session, error) {
	sess, ok := s.sessions.Get(previewID)
	if !ok {
		return nil, NotFound("Preview not found")
	}
	return sess, nil
}

// Status returns the current status of a session.
func (s *Service) Status(previewID string) (Status, error) {
	sess, err := s.Get(previewID)
	if err != nil {
		return Status{}, err
	}
	return sess.Status(), nil
}

// Fallback reports a client-side render failure for a session.
func (s *Service) Fallback(ctx context.Context, previewID, reason string) (Status, error) {
	sess, err := s.Get(previewID)
	if err != nil {
		return Status{}, err
	}
	if err := s.orch.ReportFailure(ctx, sess, reason); errors.Is(err, ErrNotStarted) {
		return Status{}, Invalid("Preview has not started")
	}
	return sess.Status(), nil
}

// RenderURL returns the preview URL of a session for method. An empty
// method selects the session's current method.
func (s *Service) RenderURL(previewID string, method Method) (string, error) {
	sess, err := s.Get(previewID)
	if err != nil {
		return "", err
	}
	if method == "" {
		method = s.currentMethod(sess)
	}
	return s.PreviewURL(sess.Target, method), nil
}

// Share issues a share link for a session.
func (s *Service) Share(ctx context.Context, previewID string) (string, time.Time, error) {
	if _, err := s.Get(previewID); err != nil {
		return "", time.Time{}, err
	}
	token, expires := s.shares.Create(ctx, previewID)
	return s.publicURL + "/share/" + token, expires, nil
}

// ResolveShare returns the preview URL a share token points at.
func (s *Service) ResolveShare(ctx context.Context, token string) (string, error) {
	previewID, ok := s.shares.Resolve(ctx, token)
	if !ok {
		return "", NotFound("Share link not found or expired")
	}
	return s.RenderURL(previewID, "")
}

// Delete removes a session.
func (s *Service) Delete(previewID string) error {
	if !s.sessions.Delete(previewID) {
		return NotFound("Preview not found")
	}
	return nil
}

// PreviewURL builds the gateway URL serving t with method.
func (s *Service) PreviewURL(t Target, method Method) string {
	q := url.Values{}
	q.Set("url", t.URL)
	q.Set("client_id", t.ClientID)

	if method == MethodScreenshot {
		q.Set("device", string(screenshot.ParseDevice(string(t.Device))))
		return s.publicURL + "/api/screenshot?" + q.Encode()
	}
	return s.publicURL + "/api/proxy?" + q.Encode()
}

// EstimatedSeconds is a rough wait hint for the preview of a session.
func EstimatedSeconds(st Status) int {
	if st.Method == MethodScreenshot || st.Mode == ModeScreenshot {
		return 10
	}
	return 2
}

func (s *Service) currentMethod(sess *Session) Method {
	_, method, _ := sess.snapshot()
	if method != "" {
		return method
	}
	if sess.Mode == ModeScreenshot {
		return MethodScreenshot
	}
	return MethodProxy
}
