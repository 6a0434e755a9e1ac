package entity

// ModelType определяет визуальную модель сущности.
// Набор фиксированный: от него зависит и словарь действий, и поведение NPC.
const (
	ModelFox    = "fox"
	ModelCesium = "cesium"
)

// Действия сущностей. Для модели fox доступны все три,
// модель cesium всегда находится в Run.
const (
	ActionSurvey = "Survey"
	ActionWalk   = "Walk"
	ActionRun    = "Run"
)

// Entity представляет синхронизируемую сущность: аватар игрока или NPC.
// Поля сериализуются в точности так, как их ожидает клиент.
type Entity struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ModelType string  `json:"modelType"`
	IsNPC     bool    `json:"isNPC"`
	Ping      int     `json:"ping"` // последняя оценка RTT, только для отображения
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	Rotation  float64 `json:"rotation"`
	Action    string  `json:"action"`
}

// InputUpdate описывает частичное обновление сущности из playerInput.
// Каждое поле опционально: nil означает «не менять».
// Это явная замена динамического Object.assign — неизвестные поля
// не могут затереть состояние, а отсутствующие не обнуляют его.
type InputUpdate struct {
	X        *float64 `json:"x"`
	Z        *float64 `json:"z"`
	Rotation *float64 `json:"rotation"`
	Action   *string  `json:"action"`
	Ping     *int     `json:"ping"`
}

// PushOutcome описывает, как стор обработал толчок.
type PushOutcome int

const (
	// PushNone — цель не найдена, толчок молча игнорируется.
	PushNone PushOutcome = iota
	// PushApplied — цель NPC, сервер сам сдвинул её позицию.
	PushApplied
	// PushForward — цель игрок: его позиция авторитетна только
	// на его клиенте, поэтому смещение нужно переслать ему директивой.
	PushForward
)
