package client

import (
	"github.com/annel0/avatar-sync/internal/world/entity"
)

// RemoteEntity — клиентское представление чужого аватара.
// Экземпляр живёт, пока сущность присутствует в снимках: обновления
// мутируют тот же объект, а не пересоздают его.
type RemoteEntity struct {
	ID        string
	Name      string
	ModelType string
	IsNPC     bool
	Ping      int
	X, Z      float64
	Rotation  float64
	Action    string
}

func (re *RemoteEntity) applyState(e entity.Entity) {
	re.Name = e.Name
	re.Ping = e.Ping
	re.X = e.X
	re.Z = e.Z
	re.Rotation = e.Rotation
	re.Action = e.Action
}

// Reconciler сводит действующий снимок сервера с локальным набором
// чужих аватаров: создаёт недостающих, обновляет живых на месте,
// убирает исчезнувших. Собственный аватар игрока игнорируется.
type Reconciler struct {
	selfID  string
	remotes map[string]*RemoteEntity
}

// NewReconciler создаёт согласователь для игрока с данным id
func NewReconciler(selfID string) *Reconciler {
	return &Reconciler{
		selfID:  selfID,
		remotes: make(map[string]*RemoteEntity),
	}
}

// Apply применяет снимок. Возвращает списки появившихся и ушедших id —
// вызывающий связывает их с созданием и уничтожением визуальных моделей.
func (r *Reconciler) Apply(snapshot map[string]entity.Entity) (created, destroyed []string) {
	for id, e := range snapshot {
		if id == r.selfID {
			continue
		}
		remote, ok := r.remotes[id]
		if !ok {
			remote = &RemoteEntity{
				ID:        id,
				ModelType: e.ModelType,
				IsNPC:     e.IsNPC,
			}
			r.remotes[id] = remote
			created = append(created, id)
		}
		remote.applyState(e)
	}

	for id := range r.remotes {
		if _, alive := snapshot[id]; !alive {
			delete(r.remotes, id)
			destroyed = append(destroyed, id)
		}
	}
	return created, destroyed
}

// RemoveNow немедленно уничтожает аватар, не дожидаясь следующего
// снимка. Используется на playerDisconnected: ушедший игрок не должен
// висеть в мире до очередной рассылки.
func (r *Reconciler) RemoveNow(id string) bool {
	if _, ok := r.remotes[id]; !ok {
		return false
	}
	delete(r.remotes, id)
	return true
}

// Get возвращает чужой аватар по id
func (r *Reconciler) Get(id string) (*RemoteEntity, bool) {
	re, ok := r.remotes[id]
	return re, ok
}

// Remotes возвращает живую карту чужих аватаров.
// Карта принадлежит согласователю, вызывающий её не мутирует.
func (r *Reconciler) Remotes() map[string]*RemoteEntity { return r.remotes }

// Count возвращает число чужих аватаров
func (r *Reconciler) Count() int { return len(r.remotes) }
