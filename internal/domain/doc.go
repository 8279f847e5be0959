// Package domain contains the meal-plan value types, the generation request
// and the Task lifecycle record together with its status machine. It has no
// dependencies on storage, transport or the completion service.
package domain
