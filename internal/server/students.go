package server

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/reelx/internal/models"
)

const maxStudentPageSize = 100

// StudentsHandler serves the per-user student collection.
type StudentsHandler struct {
	auth *Authenticator

	mu       sync.Mutex
	students []models.Student
	nextID   int
	now      func() time.Time
}

// NewStudentsHandler creates an empty collection.
func NewStudentsHandler(auth *Authenticator) *StudentsHandler {
	return &StudentsHandler{auth: auth, nextID: 1, now: time.Now}
}

// Routes returns the HTTP routes this handler serves.
func (h *StudentsHandler) Routes() []string {
	return []string{"/students/", "/students/{id}/"}
}

func (h *StudentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := h.auth.Authenticate(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w, r, user)
	case id == "" && r.Method == http.MethodPost:
		h.create(w, r, user)
	case id != "" && r.Method == http.MethodGet:
		h.retrieve(w, id, user)
	case id != "" && r.Method == http.MethodDelete:
		h.delete(w, id, user)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, detail("Method \""+r.Method+"\" not allowed."))
	}
}

func (h *StudentsHandler) list(w http.ResponseWriter, r *http.Request, user models.User) {
	q := r.URL.Query()

	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		writeJSON(w, http.StatusNotFound, detail("Invalid page."))
		return
	}
	size, err := positiveInt(q.Get("page_size"), 10)
	if err != nil {
		size = 10
	}
	size = min(size, maxStudentPageSize)

	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	branch := q.Get("branch")

	h.mu.Lock()
	matched := make([]models.Student, 0, len(h.students))
	for _, s := range h.students {
		if s.CreatorUsername != user.Username {
			continue
		}
		if branch != "" && s.Branch != branch {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(strings.ToLower(s.StudentID), search) {
			continue
		}
		matched = append(matched, s)
	}
	h.mu.Unlock()

	sortStudents(matched, q.Get("ordering"))

	pages := max((len(matched)+size-1)/size, 1)
	if page > pages {
		writeJSON(w, http.StatusNotFound, detail("Invalid page."))
		return
	}

	start := (page - 1) * size
	end := min(start+size, len(matched))
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(matched),
		"results": matched[start:end],
	})
}

func (h *StudentsHandler) create(w http.ResponseWriter, r *http.Request, user models.User) {
	var in models.StudentInput
	if err := readJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error."))
		return
	}
	if err := in.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, detail(err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.students {
		if strings.EqualFold(s.StudentID, in.StudentID) {
			writeJSON(w, http.StatusBadRequest, fieldErrors{"student_id": {"student with this student id already exists."}})
			return
		}
	}

	student := models.Student{
		ID:              h.nextID,
		StudentID:       in.StudentID,
		Name:            in.Name,
		Branch:          in.Branch,
		CreatedAt:       h.now().UTC(),
		CreatorUsername: user.Username,
	}
	h.nextID++
	h.students = append(h.students, student)
	writeJSON(w, http.StatusCreated, student)
}

func (h *StudentsHandler) retrieve(w http.ResponseWriter, id string, user models.User) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := h.indexLocked(id, user)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, detail("No Student matches the given query."))
		return
	}
	writeJSON(w, http.StatusOK, h.students[i])
}

func (h *StudentsHandler) delete(w http.ResponseWriter, id string, user models.User) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := h.indexLocked(id, user)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, detail("No Student matches the given query."))
		return
	}
	h.students = slices.Delete(h.students, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

// indexLocked finds a student owned by user; other users' students are reported as missing.
func (h *StudentsHandler) indexLocked(id string, user models.User) int {
	pk, err := strconv.Atoi(id)
	if err != nil {
		return -1
	}
	return slices.IndexFunc(h.students, func(s models.Student) bool {
		return s.ID == pk && s.CreatorUsername == user.Username
	})
}

func sortStudents(students []models.Student, ordering string) {
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")
	if field == "" {
		field, desc = "created_at", true
	}

	slices.SortStableFunc(students, func(a, b models.Student) int {
		var c int
		switch field {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "student_id":
			c = strings.Compare(a.StudentID, b.StudentID)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = a.ID - b.ID
		}
		if desc {
			return -c
		}
		return c
	})
}

func positiveInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
