package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PluginAPIRevision 在 Backend 契约发生不兼容变更时递增，使按旧契约
// 构建的后端注册在不同的扩展点下，永远不会被新代码发现并实例化。
const PluginAPIRevision = 1

// ExtensionPoint 返回当前契约版本对应的扩展点标识。
func ExtensionPoint() string {
	return fmt.Sprintf("pymirror_storage_plugins.v%d.backend", PluginAPIRevision)
}

// Settings 是构造后端时注入的配置视图：选中的后端名、镜像根目录，以及
// 后端私有的键值选项（例如 S3 的 endpoint/bucket）。
type Settings struct {
	BackendName string
	Directory   string
	Options     map[string]string
}

// Option 返回后端私有选项，缺失时为空串。
func (s Settings) Option(key string) string {
	return s.Options[key]
}

// Descriptor 是后端的轻量描述符：先凭 Name 参与按名筛选，只有被选中的
// 那一个才会执行 New 完成真正的构造（绑定根路径、分配资源）。
type Descriptor struct {
	Name string
	New  func(settings Settings) (Backend, error)
}

// Registry 维护扩展点标识到描述符列表的映射，并按扩展点缓存解析结果。
// 进程启动时构造一次、随后只读，由持有方显式传给消费者。
type Registry struct {
	mu          sync.Mutex
	descriptors map[string][]Descriptor
	resolved    map[string][]Backend
}

// NewRegistry 构造空注册表。
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string][]Descriptor),
		resolved:    make(map[string][]Backend),
	}
}

// defaultRegistry 是 init() 静态注册的落点，进程级共享。
var defaultRegistry = NewRegistry()

// Default 返回进程默认注册表，main 把它传给需要解析后端的组件。
func Default() *Registry {
	return defaultRegistry
}

// Register 在默认注册表的当前扩展点下登记一个后端描述符。
func Register(d Descriptor) error {
	return defaultRegistry.Register(ExtensionPoint(), d)
}

// MustRegister 在注册失败时 panic，适合后端包 init() 中调用。
func MustRegister(d Descriptor) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Names 返回默认注册表当前扩展点下的全部后端名，供配置校验与诊断使用。
func Names() []string {
	return defaultRegistry.Names(ExtensionPoint())
}

// IsRegistered 判断指定后端名是否已在默认注册表登记。
func IsRegistered(name string) bool {
	for _, n := range Names() {
		if n == normalizeName(name) {
			return true
		}
	}
	return false
}

// Resolve 在默认注册表的当前扩展点下解析激活的后端集合。
func Resolve(settings Settings) ([]Backend, error) {
	return defaultRegistry.Resolve(ExtensionPoint(), settings)
}

// Active 返回唯一激活的后端，没有任何描述符匹配配置名时报错。
func Active(settings Settings) (Backend, error) {
	backends, err := Resolve(settings)
	if err != nil {
		return nil, err
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no storage backend named %q is registered", settings.BackendName)
	}
	return backends[0], nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register 在指定扩展点下登记描述符，同名重复注册会返回错误。
func (r *Registry) Register(group string, d Descriptor) error {
	name := normalizeName(d.Name)
	if name == "" {
		return fmt.Errorf("backend name is required")
	}
	if d.New == nil {
		return fmt.Errorf("backend %s has no constructor", name)
	}
	d.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.descriptors[group] {
		if existing.Name == name {
			return fmt.Errorf("backend %s already registered for %s", name, group)
		}
	}
	r.descriptors[group] = append(r.descriptors[group], d)
	return nil
}

// Names 返回指定扩展点下按字典序排序的后端名列表。
func (r *Registry) Names(group string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.descriptors[group]) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.descriptors[group]))
	for _, d := range r.descriptors[group] {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// Resolve 返回扩展点下名字与 settings.BackendName 匹配的后端实例集合。
// 首次调用完成筛选与构造并缓存；之后同一扩展点直接返回缓存结果，即使
// 注册内容或配置随后变化也不重新解析（进程生命周期内的已知陈旧性）。
func (r *Registry) Resolve(group string, settings Settings) ([]Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.resolved[group]; ok {
		return cached, nil
	}

	enabled := normalizeName(settings.BackendName)
	backends := make([]Backend, 0, 1)
	for _, d := range r.descriptors[group] {
		if d.Name != enabled {
			continue
		}
		backend, err := d.New(settings)
		if err != nil {
			return nil, fmt.Errorf("construct storage backend %s: %w", d.Name, err)
		}
		backends = append(backends, backend)
	}

	r.resolved[group] = backends
	return backends, nil
}
