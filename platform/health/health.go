// Package health - реестр health check'ов сервиса.
//
// Каждая проверка имеет имя и набор тегов. HTTP endpoint выбирает
// проверки предикатом: /health запускает все, /alive только помеченные тегом "live".
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// TagLive тег liveness проверок
const TagLive = "live"

// Status результат проверки
type Status int

const (
	// StatusUnhealthy проверка не прошла
	StatusUnhealthy Status = iota
	// StatusDegraded работает, но с ограничениями
	StatusDegraded
	// StatusHealthy всё хорошо
	StatusHealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "Healthy"
	case StatusDegraded:
		return "Degraded"
	default:
		return "Unhealthy"
	}
}

// MarshalText для JSON ответа
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result результат одной проверки
type Result struct {
	Status      Status
	Description string
	Err         error
}

// Healthy успешный результат
func Healthy(description string) Result {
	return Result{Status: StatusHealthy, Description: description}
}

// Degraded результат "работает с ограничениями"
func Degraded(description string) Result {
	return Result{Status: StatusDegraded, Description: description}
}

// Unhealthy неуспешный результат
func Unhealthy(description string, err error) Result {
	return Result{Status: StatusUnhealthy, Description: description, Err: err}
}

// CheckFunc функция проверки
type CheckFunc func(ctx context.Context) Result

// Registration зарегистрированная проверка
type Registration struct {
	Name  string
	Check CheckFunc
	Tags  []string
}

// HasTag проверяет наличие тега
func (r Registration) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Predicate выбирает проверки для запуска
type Predicate func(Registration) bool

// All выбирает все проверки
func All(Registration) bool { return true }

// WithTag выбирает проверки с указанным тегом
func WithTag(tag string) Predicate {
	return func(r Registration) bool { return r.HasTag(tag) }
}

// ErrDuplicateCheck повторная регистрация проверки с тем же именем
var ErrDuplicateCheck = errors.New("health check already registered")

// Registry реестр проверок
type Registry struct {
	mu   sync.RWMutex
	regs []Registration
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{}
}

// Add регистрирует проверку
func (r *Registry) Add(name string, check CheckFunc, tags ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.regs {
		if reg.Name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateCheck, name)
		}
	}
	r.regs = append(r.regs, Registration{Name: name, Check: check, Tags: tags})
	return nil
}

// Registrations копия зарегистрированных проверок
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Registration(nil), r.regs...)
}

// Entry результат проверки в отчёте
type Entry struct {
	Status      Status        `json:"status"`
	Description string        `json:"description,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Report сводный результат
type Report struct {
	Status   Status           `json:"status"`
	Checks   map[string]Entry `json:"checks"`
	Duration time.Duration    `json:"duration"`
}

// Run параллельно запускает выбранные проверки.
// Итоговый статус - худший из статусов; пустой набор проверок считается здоровым.
func (r *Registry) Run(ctx context.Context, predicate Predicate) Report {
	if predicate == nil {
		predicate = All
	}
	start := time.Now()

	var selected []Registration
	for _, reg := range r.Registrations() {
		if predicate(reg) {
			selected = append(selected, reg)
		}
	}

	entries := make([]Entry, len(selected))
	var wg sync.WaitGroup
	for i, reg := range selected {
		wg.Add(1)
		go func(i int, reg Registration) {
			defer wg.Done()
			entries[i] = runCheck(ctx, reg)
		}(i, reg)
	}
	wg.Wait()

	report := Report{Status: StatusHealthy, Checks: make(map[string]Entry, len(selected))}
	for i, reg := range selected {
		report.Checks[reg.Name] = entries[i]
		if entries[i].Status < report.Status {
			report.Status = entries[i].Status
		}
	}
	report.Duration = time.Since(start)
	return report
}

func runCheck(ctx context.Context, reg Registration) (entry Entry) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			entry = Entry{Status: StatusUnhealthy, Error: fmt.Sprintf("panic: %v", rec)}
		}
		entry.Duration = time.Since(start)
	}()

	res := reg.Check(ctx)
	entry = Entry{Status: res.Status, Description: res.Description}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	return entry
}
