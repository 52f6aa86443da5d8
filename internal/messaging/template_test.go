package messaging

import (
	"encoding/base64"
	"errors"
	"reflect"
	"testing"
)

func TestTemplateName(t *testing.T) {
	tests := []struct {
		name   string
		header Header
		texts  [3]string
		want   string
	}{
		{"text header, one text", TextHeader{Text: "Hi"}, [3]string{"a", "", ""}, "text_text1"},
		{"image header, two texts", ImageHeader{MediaID: "m"}, [3]string{"a", "b", ""}, "image_text1_text2"},
		{"text header, three texts", TextHeader{Text: "Hi"}, [3]string{"a", "b", "c"}, "text_text1_text2_text3"},
		{"text3 without text2", TextHeader{Text: "Hi"}, [3]string{"a", "", "c"}, "text_text1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := Template{Header: tt.header, Body: NewBody(tt.texts[0], tt.texts[1], tt.texts[2])}
			if got := tpl.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewBody_Variants(t *testing.T) {
	tests := []struct {
		name string
		got  Body
		want Body
	}{
		{"only text1", NewBody("a", "", ""), TextOnly{Text1: "a"}},
		{"plus one", NewBody("a", "b", ""), TextPlusOne{Text1: "a", Text2: "b"}},
		{"plus two", NewBody("a", "b", "c"), TextPlusTwo{Text1: "a", Text2: "b", Text3: "c"}},
		{"unpaired text3", NewBody("a", "", "c"), TextOnly{Text1: "a", Unpaired: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("NewBody() = %#v, want %#v", tt.got, tt.want)
			}
		})
	}
}

func TestComponents(t *testing.T) {
	tpl := Template{Header: ImageHeader{MediaID: "media-1"}, Body: NewBody("a", "", "c")}
	got := tpl.Components()

	want := []Component{
		{Type: "header", Parameters: []Parameter{{Type: "image", Image: &MediaRef{ID: "media-1"}}}},
		{Type: "body", Parameters: []Parameter{{Type: "text", Text: "a"}, {Type: "text", Text: "c"}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Components() = %+v, want %+v", got, want)
	}
}

func TestFormValidate(t *testing.T) {
	img := &Image{Data: []byte{1}, MIMEType: "image/png"}
	tests := []struct {
		name       string
		form       Form
		wantFields []string
	}{
		{"valid text", Form{Header: HeaderText, HeaderText: "Hi", Text1: "a"}, nil},
		{"valid image", Form{Header: HeaderImage, Image: img, Text1: "a"}, nil},
		{"missing text1", Form{Header: HeaderText, HeaderText: "Hi"}, []string{"text1"}},
		{"text header empty", Form{Header: HeaderText, Text1: "a"}, []string{"text"}},
		{"image missing", Form{Header: HeaderImage, Text1: "a"}, []string{"image"}},
		{"bad header", Form{Header: "video", Text1: "a"}, []string{"header"}},
		{"all wrong", Form{Header: HeaderImage}, []string{"text1", "image"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			if !reflect.DeepEqual(got, tt.wantFields) {
				t.Errorf("fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestDecodeDataURL(t *testing.T) {
	raw := []byte("\x89PNG fake")
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL() error = %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png", img.MIMEType)
	}
	if string(img.Data) != string(raw) {
		t.Errorf("Data = %q, want %q", img.Data, raw)
	}

	bad := []string{
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:png;base64,AAAA",
		"data:image/png;base64,!!!",
	}
	for _, s := range bad {
		if _, err := DecodeDataURL(s); err == nil {
			t.Errorf("DecodeDataURL(%q) expected error", s)
		}
	}
}
