package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/pipeline"
	"github.com/tphakala/codescan/internal/scanner"
)

// RenameRequest is the body of PATCH /api/v1/scans/:id. A null, missing or
// blank name clears the custom name.
type RenameRequest struct {
	Name *string `json:"name"`
}

// DetectionResponse is the body returned for a submitted detection.
type DetectionResponse struct {
	Status pipeline.Status       `json:"status"`
	Scan   *pipeline.ScanMessage `json:"scan,omitempty"`
}

// listScans returns the full history, newest first.
func (s *Server) listScans(c echo.Context) error {
	records, err := s.store.List(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]pipeline.ScanMessage, 0, len(records))
	for i := range records {
		out = append(out, pipeline.NewScanMessage(&records[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getScan(c echo.Context) error {
	id, err := scanID(c)
	if err != nil {
		return err
	}
	rec, err := s.store.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pipeline.NewScanMessage(rec))
}

func (s *Server) renameScan(c echo.Context) error {
	id, err := scanID(c)
	if err != nil {
		return err
	}

	var req RenameRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}

	rec, err := s.store.Rename(c.Request().Context(), id, name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pipeline.NewScanMessage(rec))
}

func (s *Server) deleteScan(c echo.Context) error {
	id, err := scanID(c)
	if err != nil {
		return err
	}
	if err := s.store.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// submitDetection runs one detection through the session. New records answer
// 201, repeats of stored records 200 and gate suppressions 202.
func (s *Server) submitDetection(c echo.Context) error {
	var det scanner.Detection
	if err := c.Bind(&det); err != nil {
		return err
	}
	if det.ObservedAt.IsZero() {
		det.ObservedAt = s.now()
	}

	res, err := s.processor.Process(c.Request().Context(), det)
	if err != nil {
		return err
	}

	switch res.Status {
	case pipeline.StatusSuppressed:
		return c.JSON(http.StatusAccepted, DetectionResponse{Status: res.Status})
	case pipeline.StatusEmitted:
		msg := pipeline.NewResultMessage(&res)
		code := http.StatusOK
		if res.Created {
			code = http.StatusCreated
		}
		return c.JSON(code, DetectionResponse{Status: res.Status, Scan: &msg})
	default:
		return errors.Newf("unexpected detection status %q", res.Status).
			Component("api").
			Category(errors.CategoryProcessing).
			Build()
	}
}

func scanID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", errors.Newf("scan id is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return id, nil
}
