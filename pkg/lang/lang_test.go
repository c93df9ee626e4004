package lang

import "testing"

func TestDetect(t *testing.T) {
	detector := NewDetector()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "The board of directors announces the distribution of cash dividends to shareholders.", "en"},
		{"arabic", "يعلن مجلس الإدارة عن توزيع أرباح نقدية على المساهمين عن العام المالي", "ar"},
		{"empty", "", ""},
		{"whitespace", "   \n\t", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detector.Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
