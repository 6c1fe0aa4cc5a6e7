package autoblog

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/generation"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type documentResponse struct {
	blog.Document
	URL     string          `json:"url"`
	JSONLD  string          `json:"json_ld"`
	Related []documentBrief `json:"related"`
}

type documentBrief struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
}

func (a *App) handleDocuments(c echo.Context) error {
	docs, err := a.Cache.ListDocuments(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return err
	}
	briefs := make([]documentBrief, 0, len(docs))
	for _, d := range docs {
		briefs = append(briefs, a.brief(d))
	}
	return c.JSON(http.StatusOK, briefs)
}

func (a *App) handleDocument(c echo.Context) error {
	ctx := c.Request().Context()
	doc, err := a.Cache.GetDocument(ctx, c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no document %q", c.Param("slug")))
		}
		return err
	}
	docs, err := a.Cache.ListDocuments(ctx, "")
	if err != nil {
		return err
	}
	related := RelatedDocuments(doc, docs, 3)
	resp := documentResponse{
		Document: doc,
		URL:      DocumentURL(a.Config.Site.URL, doc.Slug),
		JSONLD:   BlogPostingJSONLD(doc, a.Config.Site),
		Related:  make([]documentBrief, 0, len(related)),
	}
	for _, d := range related {
		resp.Related = append(resp.Related, a.brief(d))
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) brief(d blog.Document) documentBrief {
	return documentBrief{Slug: d.Slug, Title: d.Title, Excerpt: d.Excerpt, URL: DocumentURL(a.Config.Site.URL, d.Slug)}
}

func (a *App) handleSitemap(c echo.Context) error {
	docs, err := a.Cache.ListDocuments(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, docs)
}

func (a *App) handleFeed(c echo.Context) error {
	docs, err := a.Cache.ListDocuments(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, docs)
}

// errorStatus maps pipeline and HTTP errors to a status code and the
// message shown to the caller.
func errorStatus(err error) (int, errorBody) {
	var valErr *blog.ValidationError
	var perErr *blog.PersistenceError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest, errorBody{Error: valErr.Reason, Field: valErr.Field}
	case errors.Is(err, generation.ErrGenerationUnavailable):
		return http.StatusBadGateway, errorBody{Error: "content generation is currently unavailable"}
	case errors.As(err, &perErr):
		return http.StatusInternalServerError, errorBody{Error: "could not save the document (" + perErr.Op + ")"}
	case errors.As(err, &httpErr):
		return httpErr.Code, errorBody{Error: fmt.Sprint(httpErr.Message)}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error"}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, body := errorStatus(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Int("status", code).Msg("Request failed")
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		log.Error().Err(err).Msg("Writing error response")
	}
}
