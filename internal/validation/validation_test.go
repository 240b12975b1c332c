package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/judyrop/catering-backend/internal/apperr"
)

type sample struct {
	Name  string   `json:"name" validate:"required,min=2"`
	Price float64  `json:"price" validate:"gt=0"`
	Kind  string   `json:"kind" validate:"oneof=a b"`
	Tags  []string `json:"tags" validate:"min=1"`
}

func TestStructMessages(t *testing.T) {
	v := New()
	ok := sample{Name: "ok", Price: 1, Kind: "a", Tags: []string{"x"}}
	assert.NoError(t, Struct(v, ok))

	cases := map[string]sample{
		"name is required":                     {Price: 1, Kind: "a", Tags: []string{"x"}},
		"name must be at least 2 characters":   {Name: "x", Price: 1, Kind: "a", Tags: []string{"x"}},
		"price must be greater than 0":         {Name: "ok", Kind: "a", Tags: []string{"x"}},
		"kind must be one of: a, b":            {Name: "ok", Price: 1, Kind: "c", Tags: []string{"x"}},
		"tags must contain at least 1 item(s)": {Name: "ok", Price: 1, Kind: "a", Tags: []string{}},
	}
	for want, in := range cases {
		err := Struct(v, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation), want)
		assert.Equal(t, want, apperr.PublicMessage(err))
	}
}
