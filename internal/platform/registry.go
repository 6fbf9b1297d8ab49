package platform

import "sort"

// ==================== 客户端注册表 ====================

// Registry 平台名 -> 客户端 的只读注册表
// 启动时装配完成，运行期不再变更，无需加锁
type Registry struct {
	clients map[string]Client
}

// NewRegistry 创建注册表
func NewRegistry(clients ...Client) *Registry {
	m := make(map[string]Client, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	return &Registry{clients: m}
}

// Get 按平台名取客户端
func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Names 已注册的平台名（固定排序，保证批次划分可复现）
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
