package handlers

import (
	"sync"

	"securedocs/services"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the "nodename" rule to gin's validator. It is safe
// to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("nodename", func(fl validator.FieldLevel) bool {
			_, err := services.ValidateNodeName(fl.Field().String(), 255)
			return err == nil
		})
	})
}
