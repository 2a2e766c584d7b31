package httpserver

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"chorddht/internal/node"
	"chorddht/internal/transport"
)

// rpcHandler implements the inbound RPC surface over echo, translating
// each route to a Node method call and back to the JSON wire shapes.
type rpcHandler struct {
	node *node.Node
	lgr  logger.Logger
}

func (h *rpcHandler) registerRoutes(e *echo.Echo) {
	e.GET("/api/find_successor", h.findSuccessor)
	e.GET("/api/get_predecessor", h.getPredecessor)
	e.GET("/api/successor_list", h.successorList)
	e.POST("/api/notify", h.notify)
	e.GET("/api/ping", h.ping)
	e.POST("/storage/upload", h.storageUpload)
	e.GET("/storage/retrieve", h.storageRetrieve)
	e.GET("/info", h.info)
}

func wireOf(n domain.NodeRef) transport.NodeWire {
	return transport.NodeWire{ID: n.ID.Decimal(), Addr: n.Addr}
}

func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, transport.ErrorResponse{Error: msg})
}

// findSuccessor serves GET /api/find_successor?id=<decimal>.
func (h *rpcHandler) findSuccessor(c echo.Context) error {
	idParam := c.QueryParam("id")
	if idParam == "" {
		return errJSON(c, http.StatusBadRequest, "missing id")
	}
	id, err := h.node.Space().FromDecimalString(idParam)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	succ, err := h.node.FindSuccessor(c.Request().Context(), id)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, wireOf(succ))
}

// getPredecessor serves GET /api/get_predecessor.
func (h *rpcHandler) getPredecessor(c echo.Context) error {
	pred, ok := h.node.Predecessor()
	if !ok {
		return c.JSON(http.StatusOK, transport.PredecessorResponse{Present: false})
	}
	w := wireOf(pred)
	return c.JSON(http.StatusOK, transport.PredecessorResponse{Present: true, Node: &w})
}

// successorList serves GET /api/successor_list.
func (h *rpcHandler) successorList(c echo.Context) error {
	list := h.node.SuccessorList()
	resp := transport.SuccessorListResponse{Successors: make([]transport.NodeWire, 0, len(list))}
	for _, n := range list {
		resp.Successors = append(resp.Successors, wireOf(n))
	}
	return c.JSON(http.StatusOK, resp)
}

// notify serves POST /api/notify, JSON body {id, host}.
func (h *rpcHandler) notify(c echo.Context) error {
	var req transport.NotifyRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "malformed notify body")
	}
	id, err := h.node.Space().FromDecimalString(req.ID)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	h.node.HandleNotify(domain.NodeRef{ID: id, Addr: req.Host})
	return c.NoContent(http.StatusOK)
}

// ping serves GET /api/ping: any 200 reply is the liveness token.
func (h *rpcHandler) ping(c echo.Context) error {
	h.node.HandlePing()
	return c.JSON(http.StatusOK, transport.PingResponse{OK: true})
}

// storageUpload serves POST /storage/upload (form fields key, content),
// where content is base64-encoded certificate bytes.
func (h *rpcHandler) storageUpload(c echo.Context) error {
	key := c.FormValue("key")
	content := c.FormValue("content")
	if key == "" {
		return errJSON(c, http.StatusBadRequest, "missing key")
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "content must be base64-encoded")
	}
	storedAt, err := h.node.HandleStore(c.Request().Context(), key, raw)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, transport.StoreResponse{StoredAt: wireOf(storedAt)})
}

// storageRetrieve serves GET /storage/retrieve?key=<name>.
func (h *rpcHandler) storageRetrieve(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return errJSON(c, http.StatusBadRequest, "missing key")
	}
	value, found, err := h.node.HandleRetrieve(c.Request().Context(), key)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}
	if !found {
		return c.JSON(http.StatusNotFound, transport.ErrorResponse{Error: "key not found"})
	}
	return c.JSON(http.StatusOK, transport.RetrieveResponse{
		Found:   true,
		Content: base64.StdEncoding.EncodeToString(value),
		Node:    h.node.Self().Addr,
	})
}

// info serves GET /info, a diagnostic snapshot of this node.
func (h *rpcHandler) info(c echo.Context) error {
	self := h.node.Self()
	resp := transport.InfoResponse{
		Self:         wireOf(self),
		Successor:    wireOf(h.node.Successor()),
		StorageCount: h.node.StorageCount(),
		StorageOwned: h.node.OwnedCount(),
	}
	if pred, ok := h.node.Predecessor(); ok {
		w := wireOf(pred)
		resp.Predecessor = &w
	}
	for _, f := range h.node.FingerSample() {
		resp.FingerSample = append(resp.FingerSample, wireOf(f))
	}
	return c.JSON(http.StatusOK, resp)
}

// requestLogger logs each request at DEBUG level with method, path,
// status and latency.
func requestLogger(lgr logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			lgr.Debug("http request",
				logger.F("method", c.Request().Method),
				logger.F("path", c.Request().URL.Path),
				logger.F("status", c.Response().Status),
				logger.F("latency", time.Since(start).String()),
			)
			return err
		}
	}
}

// jsonErrorHandler centralizes echo's error responses into the
// transport.ErrorResponse shape instead of echo's default plaintext body.
func jsonErrorHandler(lgr logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		}
		if !c.Response().Committed {
			if jerr := c.JSON(code, transport.ErrorResponse{Error: msg}); jerr != nil {
				lgr.Error("failed to write error response", logger.F("err", jerr))
			}
		}
	}
}
