// Package protocol определяет проводной формат обмена: JSON-кадры,
// маршрутизируемые по имени события. Оба направления используют
// один и тот же конверт {event, data}.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/avatar-sync/internal/world/entity"
)

// Имена событий протокола
const (
	EventJoin               = "join"               // клиент -> сервер
	EventInit               = "init"               // сервер -> новому клиенту
	EventNewPlayer          = "newPlayer"          // сервер -> остальным при входе
	EventPlayerInput        = "playerInput"        // клиент -> сервер, частичный merge
	EventPushAction         = "pushAction"         // клиент -> сервер
	EventBePushed           = "bePushed"           // сервер -> одному клиенту
	EventPlayerListUpdate   = "playerListUpdate"   // сервер -> всем, каждый тик
	EventPlayerDisconnected = "playerDisconnected" // сервер -> всем
	EventUpdatePing         = "updatePing"         // клиент -> сервер, периодически
)

// Frame — универсальный конверт сообщения.
// Data остаётся сырым JSON до маршрутизации по Event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest — рукопожатие входа
type JoinRequest struct {
	Name      string `json:"name"`
	ModelType string `json:"modelType"`
}

// InitPayload — ответ сервера на join: собственный id и полный снимок
type InitPayload struct {
	ID      string                   `json:"id"`
	Players map[string]entity.Entity `json:"players"`
}

// PushActionPayload — запрос толчка в адрес другой сущности
type PushActionPayload struct {
	TargetID string  `json:"targetId"`
	VectorX  float64 `json:"vectorX"`
	VectorZ  float64 `json:"vectorZ"`
}

// BePushedPayload — директива смещения, которую клиент применяет
// к собственной авторитетной позиции
type BePushedPayload struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Encode упаковывает событие с полезной нагрузкой в JSON-кадр
func Encode(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		data = raw
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// Decode разбирает конверт, не трогая полезную нагрузку
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// DecodePayload разбирает полезную нагрузку кадра в указанную структуру
func DecodePayload(f Frame, v interface{}) error {
	if len(f.Data) == 0 {
		return nil
	}
	return json.Unmarshal(f.Data, v)
}
