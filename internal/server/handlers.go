package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"doifind/internal/citation"
	"doifind/internal/docio"
	"doifind/internal/export"
	"doifind/internal/job"
	"doifind/internal/patch"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// upload receives a document, extracts its reference section, and starts
// background resolution. The response carries the job ID to poll.
func (s *Server) upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return detail(c, fiber.StatusBadRequest, "file is required")
	}

	st := citation.Style(strings.ToUpper(c.FormValue("citation_format", string(citation.StyleAPA))))
	if !citation.ValidStyle(st) {
		return detail(c, fiber.StatusBadRequest, "citation_format must be APA or AMA")
	}
	if !docio.Supported(fh.Filename) {
		return detail(c, fiber.StatusBadRequest,
			"unsupported file type, expected one of: "+strings.Join(docio.SupportedExtensions, ", "))
	}
	if fh.Size > s.cfg.Upload.MaxBytes {
		return detail(c, fiber.StatusBadRequest,
			fmt.Sprintf("file too large, max size: %dMB", s.cfg.Upload.MaxBytes/(1024*1024)))
	}

	if err := os.MkdirAll(s.cfg.Upload.Dir, 0o755); err != nil {
		return detail(c, fiber.StatusInternalServerError, "could not store upload")
	}
	path := filepath.Join(s.cfg.Upload.Dir, uuid.NewString()+"_"+filepath.Base(fh.Filename))
	if err := c.SaveFile(fh, path); err != nil {
		s.logger.Error("saving upload failed", "filename", fh.Filename, "err", err)
		return detail(c, fiber.StatusInternalServerError, "could not store upload")
	}

	text, err := docio.ExtractText(path)
	if err != nil {
		s.logger.Warn("text extraction failed", "filename", fh.Filename, "err", err)
		return detail(c, fiber.StatusBadRequest, "could not extract text from document")
	}

	section, _ := citation.FindReferenceSection(text)
	raws := citation.Split(section)
	cits := make([]citation.Citation, 0, len(raws))
	for i, raw := range raws {
		cits = append(cits, citation.New(i+1, raw, st))
	}

	j := job.New(fh.Filename, path, st, cits)
	if err := s.store.Create(c.Context(), j); err != nil {
		return detail(c, fiber.StatusInternalServerError, "could not create job")
	}
	s.logger.Info("file uploaded", "job", j.ID, "filename", fh.Filename, "citations", len(cits))

	go s.orch.Run(context.Background(), j)

	return c.JSON(fiber.Map{
		"job_id":          j.ID,
		"filename":        fh.Filename,
		"status":          job.StateUploaded,
		"citations_found": len(cits),
	})
}

// jobStatus returns the full job snapshot plus derived stats.
func (s *Server) jobStatus(c *fiber.Ctx) error {
	j, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	snap := j.Snapshot()
	return c.JSON(fiber.Map{
		"job":   snap,
		"stats": citation.Tally(snap.Citations),
	})
}

// processStatus is the light polling endpoint: status and progress only.
func (s *Server) processStatus(c *fiber.Ctx) error {
	j, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	snap := j.Snapshot()
	return c.JSON(fiber.Map{
		"status":   snap.Status,
		"progress": snap.Progress,
	})
}

type applyRequest struct {
	ApplyMode         string         `json:"apply_mode" validate:"required,oneof=append_new_section replace_references replace"`
	CitationStyle     string         `json:"citation_style" validate:"required,oneof=APA AMA"`
	SelectedCitations []int          `json:"selected_citations" validate:"required,min=1"`
	CitationUpdates   map[int]string `json:"citation_updates"`
}

// apply writes the selected DOIs into the document and records the
// artifact for download. Stored citations are never modified.
func (s *Server) apply(c *fiber.Ctx) error {
	j, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}

	var req applyRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, err.Error())
	}

	// Apply is only possible from a completed job; errored jobs have no
	// usable resolution results.
	snap := j.Snapshot()
	if snap.Status != job.StateCompleted {
		return detail(c, fiber.StatusConflict, "job is not completed")
	}

	text, err := docio.ExtractText(j.FilePath)
	if err != nil {
		s.logger.Error("reading original document failed", "job", j.ID, "err", err)
		return detail(c, fiber.StatusInternalServerError, "could not read original document")
	}

	out, err := patch.Apply(text, snap.Citations, patch.Request{
		Mode:      patch.Mode(req.ApplyMode),
		Style:     citation.Style(req.CitationStyle),
		Selected:  req.SelectedCitations,
		Overrides: req.CitationUpdates,
	})
	if err != nil {
		switch {
		case errors.Is(err, patch.ErrNoSelection),
			errors.Is(err, patch.ErrInvalidDOI),
			errors.Is(err, patch.ErrInvalidMode),
			errors.Is(err, patch.ErrUnknownCitation):
			return detail(c, fiber.StatusBadRequest, err.Error())
		default:
			s.logger.Error("apply failed", "job", j.ID, "err", err)
			return detail(c, fiber.StatusInternalServerError, "document processing failed")
		}
	}

	outPath := patch.OutputPath(j.FilePath)
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		s.logger.Error("writing artifact failed", "job", j.ID, "err", err)
		return detail(c, fiber.StatusInternalServerError, "could not write output document")
	}
	j.SetArtifact(outPath)
	if err := s.store.Save(c.Context(), j); err != nil {
		s.logger.Warn("job checkpoint failed", "job", j.ID, "err", err)
	}
	s.logger.Info("DOIs applied", "job", j.ID, "mode", req.ApplyMode, "selected", len(req.SelectedCitations))

	return c.JSON(fiber.Map{
		"status":       "success",
		"download_url": "/download/" + j.ID,
	})
}

// download streams the most recent apply artifact.
func (s *Server) download(c *fiber.Ctx) error {
	j, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	artifact := j.Artifact()
	if artifact == "" {
		return detail(c, fiber.StatusNotFound, "no output file available, apply DOIs first")
	}

	name := strings.TrimSuffix(j.Filename, filepath.Ext(j.Filename)) + "_with_dois" + filepath.Ext(artifact)
	return c.Download(artifact, name)
}

// exportCSV streams job results as CSV, one row per citation.
func (s *Server) exportCSV(c *fiber.Ctx) error {
	j, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	snap := j.Snapshot()

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, snap.Citations); err != nil {
		return detail(c, fiber.StatusInternalServerError, "could not build CSV export")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+export.Filename(j.Filename)+`"`)
	return c.Send(buf.Bytes())
}

func jobError(c *fiber.Ctx, err error) error {
	if errors.Is(err, job.ErrNotFound) {
		return detail(c, fiber.StatusNotFound, "job not found")
	}
	return detail(c, fiber.StatusInternalServerError, err.Error())
}
