package speech

import (
	"sync"

	"github.com/gorilla/websocket"
)

// ConnectionManager WebSocket连接管理器，每个会话最多保留一个连接。
type ConnectionManager struct {
	connections map[string]*websocket.Conn
	mu          sync.RWMutex
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
	}
}

// AddConnection 添加连接
func (cm *ConnectionManager) AddConnection(sessionID string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// 如果已存在连接，先关闭旧连接
	if oldConn, exists := cm.connections[sessionID]; exists && oldConn != conn {
		oldConn.Close()
	}

	cm.connections[sessionID] = conn
}

// RemoveConnection 仅当 conn 仍是该会话的当前连接时移除。
func (cm *ConnectionManager) RemoveConnection(sessionID string, conn *websocket.Conn) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	current, exists := cm.connections[sessionID]
	if !exists || current != conn {
		return false
	}
	delete(cm.connections, sessionID)
	return true
}

// Len 返回当前连接数
func (cm *ConnectionManager) Len() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// CloseAll 关闭所有连接
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for sessionID, conn := range cm.connections {
		conn.Close()
		delete(cm.connections, sessionID)
	}
}

// IsUnexpectedClose 判断连接是否异常断开
func IsUnexpectedClose(err error) bool {
	if err == nil {
		return false
	}
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}
