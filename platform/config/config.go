// Package config - иерархическая конфигурация сервисов eShop.
//
// Ключи имеют вид "Section:Sub:Key" и сравниваются без учёта регистра.
// Источники применяются по порядку: каждый следующий перекрывает предыдущие.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Delimiter разделитель секций в ключах
const Delimiter = ":"

// Reader - минимальный доступ к конфигурации на чтение.
type Reader interface {
	// Lookup возвращает значение ключа и признак его наличия
	Lookup(key string) (string, bool)
	// Exists сообщает, есть ли ключ или секция с таким именем
	Exists(key string) bool
}

// Source именованный источник конфигурации
type Source interface {
	Name() string
	Load(k *koanf.Koanf) error
}

// Config собранная из источников конфигурация
type Config struct {
	k       *koanf.Koanf
	sources []string
}

// New загружает источники в указанном порядке.
// Ключи нормализуются в нижний регистр, поэтому "Telemetry:PerfMode" и "telemetry:perfmode" эквивалентны.
func New(sources ...Source) (*Config, error) {
	merged := koanf.New(Delimiter)
	names := make([]string, 0, len(sources))

	for _, src := range sources {
		raw := koanf.New(Delimiter)
		if err := src.Load(raw); err != nil {
			return nil, fmt.Errorf("config source %s: %w", src.Name(), err)
		}
		for key, value := range raw.All() {
			if err := merged.Set(strings.ToLower(key), value); err != nil {
				return nil, fmt.Errorf("config source %s: key %s: %w", src.Name(), key, err)
			}
		}
		names = append(names, src.Name())
	}

	return &Config{k: merged, sources: names}, nil
}

// Lookup возвращает строковое значение ключа.
// Секции (вложенные map) значением не считаются.
func (c *Config) Lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v := c.k.Get(strings.ToLower(key))
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case map[string]interface{}, []interface{}:
		return "", false
	default:
		return fmt.Sprint(val), true
	}
}

// Exists сообщает, существует ли ключ или секция
func (c *Config) Exists(key string) bool {
	if c == nil {
		return false
	}
	return c.k.Exists(strings.ToLower(key))
}

// String возвращает значение ключа или пустую строку
func (c *Config) String(key string) string {
	v, _ := c.Lookup(key)
	return v
}

// Section возвращает вид на подсекцию
func (c *Config) Section(key string) Section {
	return Section{r: c, prefix: key}
}

// Sources имена загруженных источников в порядке применения
func (c *Config) Sources() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.sources...)
}

// Section - подсекция конфигурации, например "Pyroscope".
type Section struct {
	r      Reader
	prefix string
}

// Key полный ключ для вложенного имени
func (s Section) Key(name string) string {
	return s.prefix + Delimiter + name
}

// Lookup значение вложенного ключа
func (s Section) Lookup(name string) (string, bool) {
	return s.r.Lookup(s.Key(name))
}

// Exists сообщает, задана ли секция хоть каким-то значением
func (s Section) Exists() bool {
	return s.r.Exists(s.prefix)
}

// SectionOf строит Section поверх произвольного Reader
func SectionOf(r Reader, key string) Section {
	return Section{r: r, prefix: key}
}

// ParseBool разбирает булево значение так же, как это делает конфигурация хоста:
// допускаются пробелы вокруг значения и любой регистр.
func ParseBool(s string) (bool, bool) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}

// YAMLFile источник из YAML файла.
// Если optional и файла нет - источник пропускается.
func YAMLFile(path string, optional bool) Source {
	return fileSource{path: path, optional: optional}
}

type fileSource struct {
	path     string
	optional bool
}

func (s fileSource) Name() string { return "yaml:" + s.path }

func (s fileSource) Load(k *koanf.Koanf) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if s.optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return k.Load(rawbytes.Provider(data), yaml.Parser())
}

// Environment источник из переменных окружения процесса.
// Двойное подчёркивание задаёт вложенность: Telemetry__ServiceName -> Telemetry:ServiceName.
func Environment() Source {
	return envSource{}
}

type envSource struct{}

func (envSource) Name() string { return "env" }

func (envSource) Load(k *koanf.Koanf) error {
	return k.Load(env.Provider("", Delimiter, EnvKey), nil)
}

// EnvKey переводит имя переменной окружения в ключ конфигурации
func EnvKey(name string) string {
	return strings.ReplaceAll(name, "__", Delimiter)
}

// Map источник из значений в памяти (тесты, флаги командной строки)
func Map(name string, values map[string]string) Source {
	return mapSource{name: name, values: values}
}

type mapSource struct {
	name   string
	values map[string]string
}

func (s mapSource) Name() string { return s.name }

func (s mapSource) Load(k *koanf.Koanf) error {
	for key, value := range s.values {
		if err := k.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Default стандартный набор источников сервиса:
// appsettings.yaml, appsettings.<envName>.yaml, затем переменные окружения.
func Default(dir, envName string) []Source {
	sources := []Source{YAMLFile(filepath.Join(dir, "appsettings.yaml"), true)}
	if envName != "" {
		sources = append(sources, YAMLFile(filepath.Join(dir, "appsettings."+envName+".yaml"), true))
	}
	return append(sources, Environment())
}
