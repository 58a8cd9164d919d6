package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-org-enricher/internal/http/middleware"
	"github.com/tbourn/go-org-enricher/internal/services"
)

// GetMetadata godoc
// @ID          getMetadata
// @Summary     Extract website metadata
// @Description Fetches the page at url (https is assumed when no scheme is given) and returns its title, description, banner image and favicon. Upstream failures still answer 200 with a synthesized record carrying errorNote. Successful extractions are cached for 24 hours.
// @Tags        Metadata
// @Produce     json
//
// @Param       url  query  string  true  "Website URL, with or without scheme"  example(climatenetwork.org)
//
// @Success     200  {object} domain.Metadata
// @Failure     400  {object} handlers.MetadataError "Missing or malformed url"
// @Router      /metadata [get]
func (h *Handlers) GetMetadata(c *gin.Context) {
	rec, err := h.metaSvc.Lookup(c.Request.Context(), c.Query("url"))
	switch {
	case errors.Is(err, services.ErrURLRequired):
		badURL(c, MsgURLRequired)
		return
	case errors.Is(err, services.ErrInvalidURL):
		badURL(c, MsgInvalidURLFmt)
		return
	case err != nil:
		// Lookup resolves every other failure to a fallback record.
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if rec.IsFallback() {
		// Synthesized records are retried on the next lookup; keep clients from pinning them.
		middleware.NoStore(c)
		c.Header(middleware.HeaderMetadataFallback, "1")
		middleware.LoggerFrom(c).Debug().
			Str("domain", rec.Domain).
			Str("error_note", rec.ErrorNote).
			Msg("served fallback metadata")
	}
	ok(c, http.StatusOK, rec)
}
