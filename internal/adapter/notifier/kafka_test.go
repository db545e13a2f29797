package notifier

import "testing"

func TestNewKafkaNotifier_RejectsEmptyBrokers(t *testing.T) {
	if _, err := NewKafkaNotifier(nil, "rfq-notifications"); err == nil {
		t.Fatal("expected error for empty broker list")
	}
}

func TestNewKafkaNotifier_RejectsEmptyTopic(t *testing.T) {
	if _, err := NewKafkaNotifier([]string{"localhost:9092"}, ""); err == nil {
		t.Fatal("expected error for empty topic")
	}
}
