// Package auth validates the credentials accepted by the meal-plan API:
// HS256 bearer tokens and bcrypt-hashed API keys.
package auth
