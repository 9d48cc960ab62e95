package preview

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/sampler"
)

const publishTimeout = 2 * time.Second

// Publisher - часть mqtt.Client, нужная MQTTView.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message - полезная нагрузка, публикуемая в топик.
type Message struct {
	Reset    bool                `json:"reset,omitempty"`
	Progress float64             `json:"progress"`
	States   []sampler.DrawState `json:"states,omitempty"`
}

// MQTTView публикует состояние отрисовки каждого кадра в JSON. Кадры чаще
// MinInterval пропускаются, кроме последнего (progress 1).
type MQTTView struct {
	Client      Publisher
	Topic       string
	QoS         byte
	MinInterval time.Duration

	mu   sync.Mutex
	now  func() time.Time
	sent time.Time
}

func NewMQTTView(client Publisher, topic string) *MQTTView {
	return &MQTTView{Client: client, Topic: topic, MinInterval: 33 * time.Millisecond, now: time.Now}
}

// Connect подключается к брокеру из настроек.
func Connect(cfg config.MQTT) (mqtt.Client, error) {
	options := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second)
	client := mqtt.NewClient(options)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.URL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.URL, err)
	}
	return client, nil
}

func (v *MQTTView) Apply(f sampler.Frame) error {
	v.mu.Lock()
	now := v.clock()
	if f.Progress < 1 && !v.sent.IsZero() && now.Sub(v.sent) < v.MinInterval {
		v.mu.Unlock()
		return nil
	}
	v.sent = now
	v.mu.Unlock()
	return v.publish(Message{Progress: f.Progress, States: f.States})
}

func (v *MQTTView) Reset() error {
	v.mu.Lock()
	v.sent = time.Time{}
	v.mu.Unlock()
	return v.publish(Message{Reset: true})
}

func (v *MQTTView) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}

func (v *MQTTView) publish(m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	token := v.Client.Publish(v.Topic, v.QoS, false, b)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", v.Topic)
	}
	return token.Error()
}
