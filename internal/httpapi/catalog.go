package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

func (s *Server) clientRoutes(r chi.Router) {
	r.Get("/", s.listClients)
	r.Get("/{id}", s.getClient)
	r.Group(func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/", s.createClient)
		r.Patch("/{id}", s.updateClient)
		r.Post("/{id}/deactivate", s.deactivateClient)
		r.Post("/{id}/reactivate", s.reactivateClient)
	})
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.svc.Clients.List(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]clientView, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	client, err := s.svc.Clients.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientView(client))
}

func (s *Server) createClient(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientPatch
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	client := domain.NewClient("")
	client.Apply(req)
	if err := s.svc.Clients.Create(r.Context(), client); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientView(client))
}

func (s *Server) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req domain.ClientPatch
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	client, err := s.svc.Clients.Update(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientView(client))
}

func (s *Server) deactivateClient(w http.ResponseWriter, r *http.Request) {
	s.clientActivation(w, r, s.svc.Clients.Deactivate)
}

func (s *Server) reactivateClient(w http.ResponseWriter, r *http.Request) {
	s.clientActivation(w, r, s.svc.Clients.Reactivate)
}

func (s *Server) clientActivation(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int64) error) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := apply(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) projectRoutes(r chi.Router) {
	r.Get("/", s.listProjects)
	r.Get("/{id}", s.getProject)
	r.Group(func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/", s.createProject)
		r.Patch("/{id}", s.updateProject)
	})
}

type createProjectRequest struct {
	ClientID int64 `json:"client_id"`
	domain.ProjectPatch
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryInt64(r, "client_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter := repository.ProjectFilter{ClientID: clientID}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ProjectStatus(raw)
		if !status.Valid() {
			s.writeError(w, r, domain.Invalid("status", "unknown project status"))
			return
		}
		filter.Status = &status
	}

	projects, err := s.svc.Projects.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]projectView, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := s.svc.Projects.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectView(project))
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	project := domain.NewProject(req.ClientID, "")
	project.Apply(req.ProjectPatch)
	if err := s.svc.Projects.Create(r.Context(), project); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectView(project))
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req domain.ProjectPatch
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := s.svc.Projects.Update(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectView(project))
}

func (s *Server) subcontractorRoutes(r chi.Router) {
	r.Get("/", s.listSubcontractors)
	r.Get("/{id}", s.getSubcontractor)
	r.Group(func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/", s.createSubcontractor)
		r.Patch("/{id}", s.updateSubcontractor)
		r.Post("/{id}/deactivate", s.deactivateSubcontractor)
	})
}

func (s *Server) listSubcontractors(w http.ResponseWriter, r *http.Request) {
	subs, err := s.svc.People.ListSubcontractors(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]subcontractorView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubcontractorView(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSubcontractor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.svc.People.GetSubcontractor(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubcontractorView(sub))
}

func (s *Server) createSubcontractor(w http.ResponseWriter, r *http.Request) {
	var req domain.SubcontractorPatch
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sub := &domain.Subcontractor{}
	sub.Apply(req)
	if err := s.svc.People.CreateSubcontractor(r.Context(), sub); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubcontractorView(sub))
}

func (s *Server) updateSubcontractor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req domain.SubcontractorPatch
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.svc.People.UpdateSubcontractor(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubcontractorView(sub))
}

func (s *Server) deactivateSubcontractor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.People.DeactivateSubcontractor(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) userRoutes(r chi.Router) {
	r.Get("/", s.listUsers)
	r.Get("/{id}", s.getUser)
	r.With(s.adminOnly).Post("/", s.createUser)
}

type createUserRequest struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.People.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, toUserView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.svc.People.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.svc.People.CreateUser(r.Context(), req.Name, req.Email, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(user))
}
