package dto

import (
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"mydayplanner/model"
)

var registerOnce sync.Once

// RegisterValidators adds the calendardate, clock and frequency tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("calendardate", func(fl validator.FieldLevel) bool {
			_, err := civil.ParseDate(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := time.Parse("15:04", fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
			switch model.Frequency(fl.Field().String()) {
			case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly, model.FrequencyCustom:
				return true
			}
			return false
		})
	})
}
