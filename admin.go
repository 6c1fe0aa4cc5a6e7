package autoblog

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/ingest"
	"github.com/eringen/autoblog/markdown"
)

// scheduleLayouts are accepted for scheduled_for. The HTML datetime-local
// forms are read in the server's local time zone.
var scheduleLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

type adminStatus struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrf_token"`
}

// runSummary is the response of a successful generation run.
type runSummary struct {
	ID               int64                 `json:"id"`
	Slug             string                `json:"slug"`
	Title            string                `json:"title"`
	URL              string                `json:"url"`
	State            blog.PublicationState `json:"state"`
	PublishedAt      *time.Time            `json:"published_at,omitempty"`
	ScheduledFor     *time.Time            `json:"scheduled_for,omitempty"`
	FormatConfidence blog.FormatConfidence `json:"format_confidence"`
	FeaturedImage    string                `json:"featured_image,omitempty"`
	Images           int                   `json:"images"`
	ParseStrategy    string                `json:"parse_strategy"`
	GenerationPath   string                `json:"generation_path"`
}

func (a *App) handleAdmin(c echo.Context) error {
	return c.JSON(http.StatusOK, adminStatus{Authenticated: IsAdmin(c), CSRFToken: CsrfToken(c)})
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.Admin.Password)) != 1 {
		a.loginLimiter.Record(ip)
		log.Warn().Str("ip", ip).Msg("Failed admin login")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminStatus{Authenticated: true, CSRFToken: CsrfToken(c)})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminStatus{Authenticated: false, CSRFToken: CsrfToken(c)})
}

func (a *App) handleAutoblog(c echo.Context) error {
	if !a.runLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "generation limit reached, try again later")
	}
	req, err := a.readRunRequest(c)
	if err != nil {
		return err
	}
	res, err := a.Generate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a.summarize(res))
}

// readRunRequest decodes the multipart form of a generation request.
func (a *App) readRunRequest(c echo.Context) (RunRequest, error) {
	req := RunRequest{
		Guidance: strings.TrimSpace(c.FormValue("guidance")),
		Mode:     ParsePublishMode(c.FormValue("mode")),
	}
	if raw := strings.TrimSpace(c.FormValue("scheduled_for")); raw != "" {
		at, err := parseSchedule(raw)
		if err != nil {
			return RunRequest{}, err
		}
		req.ScheduledFor = at
	}

	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return req, nil
		}
		return RunRequest{}, &blog.ValidationError{Field: "images", Reason: "unreadable multipart form", Err: err}
	}
	files := form.File["images"]
	if limit := a.Config.Images.MaxImages; len(files) > limit {
		return RunRequest{}, blog.Invalid("images", "%d images submitted, at most %d allowed", len(files), limit)
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return RunRequest{}, &blog.ValidationError{Field: "images", Reason: "unreadable upload " + fh.Filename, Err: err}
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return RunRequest{}, &blog.ValidationError{Field: "images", Reason: "unreadable upload " + fh.Filename, Err: err}
		}
		req.Uploads = append(req.Uploads, ingest.Upload{Filename: fh.Filename, Data: data})
	}
	return req, nil
}

func parseSchedule(raw string) (time.Time, error) {
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, blog.Invalid("scheduled_for", "cannot read %q as a date and time", raw)
}

func (a *App) summarize(res RunResult) runSummary {
	d := res.Document
	return runSummary{
		ID:               d.ID,
		Slug:             d.Slug,
		Title:            d.Title,
		URL:              DocumentURL(a.Config.Site.URL, d.Slug),
		State:            d.State,
		PublishedAt:      d.PublishedAt,
		ScheduledFor:     d.ScheduledFor,
		FormatConfidence: d.FormatConfidence,
		FeaturedImage:    d.FeaturedImage,
		Images:           res.Images,
		ParseStrategy:    string(res.Strategy),
		GenerationPath:   string(res.Path),
	}
}

func (a *App) handleAdminDocuments(c echo.Context) error {
	docs, err := a.Store.ListDocuments(c.Request().Context())
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []blog.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (a *App) handleAdminDocument(c echo.Context) error {
	doc, err := a.Store.GetDocument(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no document %q", c.Param("slug")))
		}
		return err
	}
	return Render(c, markdown.Preview(doc.ContentHTML))
}
