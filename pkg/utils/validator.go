package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	phonePattern    = regexp.MustCompile(`^\+?\d{10,15}$`)
	nicPattern      = regexp.MustCompile(`^(\d{9}[vVxX]|\d{12})$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,20}$`)
	otpCodePattern  = regexp.MustCompile(`^\d{6}$`)
)

func init() {
	validate = validator.New()

	rules := map[string]*regexp.Regexp{
		"phone":    phonePattern,
		"nic":      nicPattern,
		"username": usernamePattern,
		"otp_code": otpCodePattern,
	}
	for tag, pattern := range rules {
		if err := validate.RegisterValidation(tag, matchPattern(pattern)); err != nil {
			panic(err)
		}
	}
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}
