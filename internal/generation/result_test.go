package generation

import "testing"

func TestExtractResultURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"primary", `{"resultUrls":["https://v/1.mp4","https://v/2.mp4"]}`, "https://v/1.mp4", false},
		{"watermark fallback", `{"resultUrls":[],"resultWaterMarkUrls":["https://v/w.mp4"]}`, "https://v/w.mp4", false},
		{"blank primary falls back", `{"resultUrls":[" "],"resultWaterMarkUrls":["https://v/w.mp4"]}`, "https://v/w.mp4", false},
		{"empty lists", `{"resultUrls":[]}`, "", true},
		{"blank", "  ", "", true},
		{"malformed", `{"resultUrls":`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractResultURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAspectFor(t *testing.T) {
	if AspectFor("16:9") != Landscape {
		t.Fatal("16:9 should be landscape")
	}
	for _, f := range []string{"9:16", "", "4:3"} {
		if AspectFor(f) != Portrait {
			t.Fatalf("%q should be portrait", f)
		}
	}
}
