package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"procpilot/internal/domain"
)

type Server struct {
	Name      string `gorm:"primaryKey"`
	Path      string
	Kind      string
	Command   string
	Args      string
	Port      int
	VenvPath  string
	Status    string
	CreatedAt time.Time
	StartedAt *time.Time
}

type Stack struct {
	Name    string `gorm:"primaryKey"`
	Members string // JSON array of server names, order preserved
}

type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	newLogger := gormlogger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		gormlogger.Config{
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Error,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Server{}, &Stack{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	store := &GormStore{db: db}

	if err := store.initDefaultSettings(); err != nil {
		return nil, fmt.Errorf("error initializing settings: %w", err)
	}

	return store, nil
}

func (s *GormStore) initDefaultSettings() error {
	defaults := map[string]string{
		"python_command": "python",
		"node_command":   "node",
	}

	for key, value := range defaults {
		var setting Setting
		result := s.db.First(&setting, "key = ?", key)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				if err := s.db.Create(&Setting{Key: key, Value: value}).Error; err != nil {
					return err
				}
			} else {
				return result.Error
			}
		}
	}

	return nil
}

func toRecord(cfg domain.ServerConfig) *Server {
	return &Server{
		Name:      cfg.Name,
		Path:      cfg.Path,
		Kind:      string(cfg.Kind),
		Command:   cfg.Command,
		Args:      cfg.Args,
		Port:      cfg.Port,
		VenvPath:  cfg.VenvPath,
		Status:    cfg.Status,
		CreatedAt: cfg.CreatedAt,
		StartedAt: cfg.StartedAt,
	}
}

func toDomain(rec Server) domain.ServerConfig {
	return domain.ServerConfig{
		Name:      rec.Name,
		Path:      rec.Path,
		Kind:      domain.Kind(rec.Kind),
		Command:   rec.Command,
		Args:      rec.Args,
		Port:      rec.Port,
		VenvPath:  rec.VenvPath,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		StartedAt: rec.StartedAt,
	}
}

func (s *GormStore) SaveServer(cfg domain.ServerConfig) error {
	return s.db.Create(toRecord(cfg)).Error
}

func (s *GormStore) GetServer(name string) (*domain.ServerConfig, error) {
	var rec Server
	result := s.db.First(&rec, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying server: %w", result.Error)
	}
	cfg := toDomain(rec)
	return &cfg, nil
}

func (s *GormStore) ListServers() ([]domain.ServerConfig, error) {
	var recs []Server
	if err := s.db.Order("name").Find(&recs).Error; err != nil {
		return nil, err
	}

	servers := make([]domain.ServerConfig, 0, len(recs))
	for _, rec := range recs {
		servers = append(servers, toDomain(rec))
	}
	return servers, nil
}

func (s *GormStore) UpdateServer(name string, upd domain.ServerUpdate) error {
	updates := make(map[string]interface{})
	if upd.Path != nil {
		updates["path"] = *upd.Path
	}
	if upd.Kind != nil {
		updates["kind"] = string(*upd.Kind)
	}
	if upd.Command != nil {
		updates["command"] = *upd.Command
	}
	if upd.Args != nil {
		updates["args"] = *upd.Args
	}
	if upd.Port != nil {
		updates["port"] = *upd.Port
	}
	if upd.VenvPath != nil {
		// An explicit empty string clears the virtualenv.
		updates["venv_path"] = *upd.VenvPath
	}
	if len(updates) == 0 {
		return nil
	}

	return s.db.Model(&Server{}).Where("name = ?", name).Updates(updates).Error
}

// UpdateStatus persists a status transition. startedAt is set on running
// and cleared on stopped.
func (s *GormStore) UpdateStatus(name, status string, startedAt *time.Time) error {
	return s.db.Model(&Server{}).Where("name = ?", name).Updates(map[string]interface{}{
		"status":     status,
		"started_at": startedAt,
	}).Error
}

func (s *GormStore) DeleteServer(name string) error {
	return s.db.Delete(&Server{}, "name = ?", name).Error
}

func (s *GormStore) SaveStack(stack domain.Stack) error {
	members, err := json.Marshal(stack.Members)
	if err != nil {
		return err
	}
	return s.db.Create(&Stack{Name: stack.Name, Members: string(members)}).Error
}

func (s *GormStore) GetStack(name string) (*domain.Stack, error) {
	var rec Stack
	result := s.db.First(&rec, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying stack: %w", result.Error)
	}
	return stackToDomain(rec)
}

func (s *GormStore) ListStacks() ([]domain.Stack, error) {
	var recs []Stack
	if err := s.db.Order("name").Find(&recs).Error; err != nil {
		return nil, err
	}

	stacks := make([]domain.Stack, 0, len(recs))
	for _, rec := range recs {
		stack, err := stackToDomain(rec)
		if err != nil {
			log.Printf("storage: skipping stack %s with bad member list: %v", rec.Name, err)
			continue
		}
		stacks = append(stacks, *stack)
	}
	return stacks, nil
}

func (s *GormStore) UpdateStack(name string, members []string) error {
	data, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return s.db.Model(&Stack{}).Where("name = ?", name).Update("members", string(data)).Error
}

func (s *GormStore) DeleteStack(name string) error {
	return s.db.Delete(&Stack{}, "name = ?", name).Error
}

func stackToDomain(rec Stack) (*domain.Stack, error) {
	var members []string
	if rec.Members != "" {
		if err := json.Unmarshal([]byte(rec.Members), &members); err != nil {
			return nil, err
		}
	}
	return &domain.Stack{Name: rec.Name, Members: members}, nil
}

func (s *GormStore) GetSetting(key string) (string, error) {
	var setting Setting
	result := s.db.First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("setting not found: %s", key)
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStore) SetSetting(key string, value string) error {
	var setting Setting
	result := s.db.First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return s.db.Create(&Setting{Key: key, Value: value}).Error
		}
		return result.Error
	}

	return s.db.Model(&setting).Update("value", value).Error
}

func (s *GormStore) ListSettings() (map[string]string, error) {
	var settings []Setting
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}
