package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/pkg/models"
)

func (s *Server) ListPlaybooks(c echo.Context) error {
	list, err := s.Playbooks.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) GetPlaybook(c echo.Context) error {
	pb, err := s.Playbooks.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pb)
}

// PutPlaybook creates or replaces a playbook. A body id that differs from
// the path is rejected; an empty one takes the path id.
func (s *Server) PutPlaybook(c echo.Context) error {
	var pb models.Playbook
	if err := bindBody(c, &pb); err != nil {
		return err
	}
	if pb.ID != "" && pb.ID != c.Param("id") {
		return apperrors.NewValidationError("id", "body id does not match the path")
	}
	pb.ID = c.Param("id")
	if err := s.Playbooks.Save(c.Request().Context(), &pb); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pb)
}

func (s *Server) DeletePlaybook(c echo.Context) error {
	if err := s.Playbooks.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
