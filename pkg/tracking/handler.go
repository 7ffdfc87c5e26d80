package tracking

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// transparentGIF is a 1x1 fully transparent GIF89a.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the open and click endpoints. Mount it under the same
// prefix the Rewriter builds URLs with:
//
//	r.Mount("/track", tracking.NewHandler(store, tracking.WithHandlerLogger(log)))
type Handler struct {
	logger *slog.Logger
	store  LinkStore
	router chi.Router
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for event recording failures.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates the tracking HTTP handler backed by store.
func NewHandler(store LinkStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		logger: slog.New(slog.DiscardHandler),
		store:  store,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Get("/open/{logUUID}", h.handleOpen)
	r.Get("/click/{logUUID}/{token}", h.handleClick)
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	logUUID := chi.URLParam(r, "logUUID")

	if err := h.store.MarkOpened(r.Context(), logUUID); err != nil {
		if errors.Is(err, ErrLogNotFound) {
			http.NotFound(w, r)
			return
		}
		// Recording failed but the pixel must still load.
		h.logger.Warn("open event not recorded",
			slog.String("log_uuid", logUUID),
			slog.Any("error", err),
		)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(transparentGIF)))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Write(transparentGIF)
}

func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	logUUID := chi.URLParam(r, "logUUID")
	token := chi.URLParam(r, "token")

	link, err := h.store.FindLinkByToken(r.Context(), logUUID, token)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) || errors.Is(err, ErrLogNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("tracked link lookup failed",
			slog.String("token", token),
			slog.Any("error", err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// The scheme was checked at rewrite time; check again in case the stored
	// URL was tampered with since.
	u, err := url.Parse(link.OriginalURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		http.Error(w, "invalid redirect target", http.StatusBadRequest)
		return
	}

	if err := h.store.IncrementClick(r.Context(), link.ID); err != nil {
		h.logger.Warn("click event not recorded",
			slog.String("token", token),
			slog.Any("error", err),
		)
	}

	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}
