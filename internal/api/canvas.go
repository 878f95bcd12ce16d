package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"clynto/backend/internal/canvas"
	"clynto/backend/pkg/models"
)

// dateRange binds a pair of optional RFC 3339 or YYYY-MM-DD bounds.
func dateRange(c echo.Context, from, to string) (canvas.DateRange, error) {
	var f, t *time.Time
	if err := bindQuery(c, from, &f); err != nil {
		return canvas.DateRange{}, err
	}
	if err := bindQuery(c, to, &t); err != nil {
		return canvas.DateRange{}, err
	}
	return canvas.DateRange{From: deref(f), To: deref(t)}, nil
}

// ListAccounts returns the accounts table.
func (s *Server) ListAccounts(c echo.Context) error {
	var search, segment, health *string
	for name, dest := range map[string]**string{"search": &search, "segment": &segment, "health": &health} {
		if err := bindQuery(c, name, dest); err != nil {
			return err
		}
	}
	renewal, err := dateRange(c, "renewal_from", "renewal_to")
	if err != nil {
		return err
	}
	list, err := s.Canvas.Accounts(c.Request().Context(), canvas.AccountFilter{
		Search:  deref(search),
		Segment: deref(segment),
		Health:  models.HealthStatus(deref(health)),
		Renewal: renewal,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) GetAccount(c echo.Context) error {
	a, err := s.Canvas.Account(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) ListHealth(c echo.Context) error {
	var status *string
	if err := bindQuery(c, "status", &status); err != nil {
		return err
	}
	list, err := s.Canvas.Health(c.Request().Context(), models.HealthStatus(deref(status)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// GetRevenue returns the revenue matrix, optionally for a single account.
func (s *Server) GetRevenue(c echo.Context) error {
	var account *string
	if err := bindQuery(c, "account", &account); err != nil {
		return err
	}
	m, err := s.Canvas.Revenue(c.Request().Context(), deref(account))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) ListTickets(c echo.Context) error {
	var account, status, priority *string
	for name, dest := range map[string]**string{"account": &account, "status": &status, "priority": &priority} {
		if err := bindQuery(c, name, dest); err != nil {
			return err
		}
	}
	opened, err := dateRange(c, "opened_from", "opened_to")
	if err != nil {
		return err
	}
	list, err := s.Canvas.Tickets(c.Request().Context(), canvas.TicketFilter{
		Account:  deref(account),
		Status:   models.TicketStatus(deref(status)),
		Priority: models.TicketPriority(deref(priority)),
		Opened:   opened,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) GetTicket(c echo.Context) error {
	t, err := s.Canvas.Ticket(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) ListMeetings(c echo.Context) error {
	var account, status *string
	if err := bindQuery(c, "account", &account); err != nil {
		return err
	}
	if err := bindQuery(c, "status", &status); err != nil {
		return err
	}
	when, err := dateRange(c, "from", "to")
	if err != nil {
		return err
	}
	list, err := s.Canvas.Meetings(c.Request().Context(), canvas.MeetingFilter{
		Account: deref(account),
		Status:  models.MeetingStatus(deref(status)),
		When:    when,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) GetMeeting(c echo.Context) error {
	m, err := s.Canvas.Meeting(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// ListTasks flattens the tasks of every workflow for the tasks page.
func (s *Server) ListTasks(c echo.Context) error {
	var status, owner, account, search *string
	for name, dest := range map[string]**string{"status": &status, "owner": &owner, "account": &account, "search": &search} {
		if err := bindQuery(c, name, dest); err != nil {
			return err
		}
	}
	list, err := s.Canvas.Tasks(c.Request().Context(), canvas.TaskFilter{
		Status:  models.TaskStatus(deref(status)),
		Owner:   deref(owner),
		Account: deref(account),
		Search:  deref(search),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
