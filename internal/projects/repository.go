package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// Repository provides document-backed persistence inside one tenant
// store.
type Repository struct {
	handle *tenant.Handle
}

// NewRepository constructs a repository over a tenant handle.
func NewRepository(handle *tenant.Handle) *Repository {
	return &Repository{handle: handle}
}

func (r *Repository) collection(ctx context.Context, entity string) (*tenant.Collection, error) {
	return r.handle.Collection(ctx, entity)
}

// ActiveAssignmentsForUser returns the user's active project assignments.
func (r *Repository) ActiveAssignmentsForUser(ctx context.Context, userID string) ([]Assignment, error) {
	col, err := r.collection(ctx, CollectionAssignments)
	if err != nil {
		return nil, err
	}
	docs, err := col.Find(ctx, tenant.Document{"userId": userID, "isActive": true})
	if err != nil {
		return nil, err
	}
	return decodeAll[Assignment](docs)
}

// ActiveAssignment reports whether the user holds an active assignment
// on the project.
func (r *Repository) ActiveAssignment(ctx context.Context, userID, projectID string) (bool, error) {
	col, err := r.collection(ctx, CollectionAssignments)
	if err != nil {
		return false, err
	}
	docs, err := col.Find(ctx, tenant.Document{
		"userId":    userID,
		"projectId": projectID,
		"isActive":  true,
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// ProjectByID loads one project.
func (r *Repository) ProjectByID(ctx context.Context, id string) (Project, error) {
	col, err := r.collection(ctx, CollectionProjects)
	if err != nil {
		return Project{}, err
	}
	doc, err := col.Get(ctx, id)
	if err != nil {
		return Project{}, err
	}
	return decode[Project](doc)
}

// ProjectsByIDs resolves the referenced projects, skipping ids whose
// records are gone so partial data never fails a permission check.
func (r *Repository) ProjectsByIDs(ctx context.Context, ids []string) ([]Project, error) {
	col, err := r.collection(ctx, CollectionProjects)
	if err != nil {
		return nil, err
	}
	var out []Project
	for _, id := range ids {
		doc, err := col.Get(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		p, err := decode[Project](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ProjectsForUser queries the embedded arrays: projects where the user
// is an assigned manager, an assigned HR, or the creator.
func (r *Repository) ProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	col, err := r.collection(ctx, CollectionProjects)
	if err != nil {
		return nil, err
	}
	asManager, _ := json.Marshal(tenant.Document{"assignedManagers": []string{userID}})
	asHR, _ := json.Marshal(tenant.Document{"assignedHRs": []string{userID}})
	asCreator, _ := json.Marshal(tenant.Document{"createdBy": userID})
	docs, err := col.FindWhere(ctx, "doc @> $1 OR doc @> $2 OR doc @> $3", asManager, asHR, asCreator)
	if err != nil {
		return nil, err
	}
	return decodeAll[Project](docs)
}

// ActiveTeamAssignments returns the project's active manager-HR pairings.
func (r *Repository) ActiveTeamAssignments(ctx context.Context, projectID string) ([]TeamAssignment, error) {
	col, err := r.collection(ctx, CollectionTeamAssignments)
	if err != nil {
		return nil, err
	}
	docs, err := col.Find(ctx, tenant.Document{"projectId": projectID, "isActive": true})
	if err != nil {
		return nil, err
	}
	return decodeAll[TeamAssignment](docs)
}

// ListProjects returns every project in the tenant.
func (r *Repository) ListProjects(ctx context.Context) ([]Project, error) {
	col, err := r.collection(ctx, CollectionProjects)
	if err != nil {
		return nil, err
	}
	docs, err := col.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	return decodeAll[Project](docs)
}

// AssignmentDocs returns every assignment as a raw document, for
// scope-filtered listings.
func (r *Repository) AssignmentDocs(ctx context.Context) ([]tenant.Document, error) {
	col, err := r.collection(ctx, CollectionAssignments)
	if err != nil {
		return nil, err
	}
	return col.Find(ctx, nil)
}

// UserRole returns the stored role of a user.
func (r *Repository) UserRole(ctx context.Context, userID string) (string, error) {
	col, err := r.collection(ctx, CollectionUsers)
	if err != nil {
		return "", err
	}
	doc, err := col.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	role, _ := doc["role"].(string)
	return role, nil
}

// InsertProject stores a new project.
func (r *Repository) InsertProject(ctx context.Context, p Project) error {
	col, err := r.collection(ctx, CollectionProjects)
	if err != nil {
		return err
	}
	doc, err := encode(p)
	if err != nil {
		return err
	}
	return col.Insert(ctx, p.ID, doc)
}

// UpdateProject replaces a stored project.
func (r *Repository) UpdateProject(ctx context.Context, p Project) error {
	col, err := r.collection(ctx, CollectionProjects)
	if err != nil {
		return err
	}
	doc, err := encode(p)
	if err != nil {
		return err
	}
	return col.Update(ctx, p.ID, doc)
}

// DeleteProject removes a stored project.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	col, err := r.collection(ctx, CollectionProjects)
	if err != nil {
		return err
	}
	return col.Delete(ctx, id)
}

// InsertAssignments stores a batch of project assignments. The writes
// are independent; the caller owns compensation on partial failure.
func (r *Repository) InsertAssignments(ctx context.Context, assignments []Assignment) error {
	col, err := r.collection(ctx, CollectionAssignments)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		doc, err := encode(a)
		if err != nil {
			return err
		}
		if err := col.Insert(ctx, a.ID, doc); err != nil {
			return err
		}
	}
	return nil
}

func encode(v any) (tenant.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("projects: encode: %w", err)
	}
	var doc tenant.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("projects: encode: %w", err)
	}
	return doc, nil
}

func decode[T any](doc tenant.Document) (T, error) {
	var v T
	raw, err := json.Marshal(doc)
	if err != nil {
		return v, fmt.Errorf("projects: decode: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("projects: decode: %w", err)
	}
	return v, nil
}

func decodeAll[T any](docs []tenant.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
