package main

import (
	"testing"
)

func TestToEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantALB bool
	}{
		{
			name: "api gateway",
			raw: `{"path":"/fit-in/100x100/a.jpg","headers":{"Accept":"image/webp"},
				"queryStringParameters":{"signature":"abc"},"requestContext":{"stage":"prod"}}`,
		},
		{
			name: "alb",
			raw: `{"path":"/fit-in/100x100/a.jpg","headers":{"Accept":"image/webp"},
				"queryStringParameters":{"signature":"abc"},
				"requestContext":{"elb":{"targetGroupArn":"arn:aws:elasticloadbalancing:us-east-1:123:targetgroup/t/1"}}}`,
			wantALB: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := toEvent([]byte(tt.raw))
			if err != nil {
				t.Fatalf("toEvent: %v", err)
			}
			if ev.ALB != tt.wantALB {
				t.Errorf("ALB = %v, want %v", ev.ALB, tt.wantALB)
			}
			if ev.Path != "/fit-in/100x100/a.jpg" || ev.Header("accept") != "image/webp" || ev.QueryStringParameters["signature"] != "abc" {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}

func TestToEventRejectsGarbage(t *testing.T) {
	if _, err := toEvent([]byte(`[1,2`)); err == nil {
		t.Error("toEvent() succeeded on invalid JSON")
	}
}
