package service

import (
	"context"
	"strings"
	"time"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

// ClientService manages clients
type ClientService interface {
	Create(ctx context.Context, client *domain.Client) error
	Get(ctx context.Context, id int64) (*domain.Client, error)
	FindByName(ctx context.Context, name string) (*domain.Client, error)
	List(ctx context.Context, includeInactive bool) ([]*domain.Client, error)
	Update(ctx context.Context, id int64, patch domain.ClientPatch) (*domain.Client, error)
	Deactivate(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
}

type clientService struct {
	clientRepo repository.ClientRepository
}

// NewClientService creates a new client service
func NewClientService(clientRepo repository.ClientRepository) ClientService {
	return &clientService{clientRepo: clientRepo}
}

func (s *clientService) Create(ctx context.Context, client *domain.Client) error {
	if client.PaymentTerms == 0 {
		client.PaymentTerms = domain.DefaultPaymentTerms
	}
	return s.clientRepo.Create(ctx, client)
}

func (s *clientService) Get(ctx context.Context, id int64) (*domain.Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}

func (s *clientService) FindByName(ctx context.Context, name string) (*domain.Client, error) {
	return s.clientRepo.GetByName(ctx, strings.TrimSpace(name))
}

func (s *clientService) List(ctx context.Context, includeInactive bool) ([]*domain.Client, error) {
	return s.clientRepo.List(ctx, includeInactive)
}

func (s *clientService) Update(ctx context.Context, id int64, patch domain.ClientPatch) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	client.Apply(patch)
	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *clientService) Deactivate(ctx context.Context, id int64) error {
	return s.clientRepo.Deactivate(ctx, id)
}

func (s *clientService) Reactivate(ctx context.Context, id int64) error {
	return s.clientRepo.Reactivate(ctx, id)
}

// ProjectService manages projects
type ProjectService interface {
	Create(ctx context.Context, project *domain.Project) error
	Get(ctx context.Context, id int64) (*domain.Project, error)
	List(ctx context.Context, filter repository.ProjectFilter) ([]*domain.Project, error)
	Update(ctx context.Context, id int64, patch domain.ProjectPatch) (*domain.Project, error)
	SetStatus(ctx context.Context, id int64, status domain.ProjectStatus) (*domain.Project, error)
}

type projectService struct {
	projectRepo repository.ProjectRepository
	clientRepo  repository.ClientRepository
}

// NewProjectService creates a new project service
func NewProjectService(projectRepo repository.ProjectRepository, clientRepo repository.ClientRepository) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		clientRepo:  clientRepo,
	}
}

func (s *projectService) Create(ctx context.Context, project *domain.Project) error {
	client, err := s.clientRepo.GetByID(ctx, project.ClientID)
	if err != nil {
		return err
	}
	if !client.IsActive {
		return domain.Preconditionf("client %s is inactive", client.Name)
	}
	if project.Status == "" {
		project.Status = domain.ProjectStatusActive
	}
	return s.projectRepo.Create(ctx, project)
}

func (s *projectService) Get(ctx context.Context, id int64) (*domain.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

func (s *projectService) List(ctx context.Context, filter repository.ProjectFilter) ([]*domain.Project, error) {
	return s.projectRepo.List(ctx, filter)
}

func (s *projectService) Update(ctx context.Context, id int64, patch domain.ProjectPatch) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Apply(patch)
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) SetStatus(ctx context.Context, id int64, status domain.ProjectStatus) (*domain.Project, error) {
	return s.Update(ctx, id, domain.ProjectPatch{Status: &status})
}

// PeopleService manages users and subcontractors
type PeopleService interface {
	CreateUser(ctx context.Context, name, email string, role domain.Role) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)

	CreateSubcontractor(ctx context.Context, sub *domain.Subcontractor) error
	GetSubcontractor(ctx context.Context, id int64) (*domain.Subcontractor, error)
	ListSubcontractors(ctx context.Context, includeInactive bool) ([]*domain.Subcontractor, error)
	UpdateSubcontractor(ctx context.Context, id int64, patch domain.SubcontractorPatch) (*domain.Subcontractor, error)
	DeactivateSubcontractor(ctx context.Context, id int64) error
}

type peopleService struct {
	userRepo repository.UserRepository
	subRepo  repository.SubcontractorRepository
}

// NewPeopleService creates a new people service
func NewPeopleService(userRepo repository.UserRepository, subRepo repository.SubcontractorRepository) PeopleService {
	return &peopleService{
		userRepo: userRepo,
		subRepo:  subRepo,
	}
}

func (s *peopleService) CreateUser(ctx context.Context, name, email string, role domain.Role) (*domain.User, error) {
	if role == "" {
		role = domain.RoleConsultant
	}
	user := &domain.User{
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *peopleService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *peopleService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}

func (s *peopleService) CreateSubcontractor(ctx context.Context, sub *domain.Subcontractor) error {
	now := time.Now()
	sub.IsActive = true
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return s.subRepo.Create(ctx, sub)
}

func (s *peopleService) GetSubcontractor(ctx context.Context, id int64) (*domain.Subcontractor, error) {
	return s.subRepo.GetByID(ctx, id)
}

func (s *peopleService) ListSubcontractors(ctx context.Context, includeInactive bool) ([]*domain.Subcontractor, error) {
	return s.subRepo.List(ctx, includeInactive)
}

func (s *peopleService) UpdateSubcontractor(
	ctx context.Context,
	id int64,
	patch domain.SubcontractorPatch,
) (*domain.Subcontractor, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Apply(patch)
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *peopleService) DeactivateSubcontractor(ctx context.Context, id int64) error {
	return s.subRepo.Deactivate(ctx, id)
}
