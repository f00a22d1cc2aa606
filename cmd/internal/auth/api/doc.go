// Package authapi is the HTTP JSON client for the task dashboard auth endpoints.
//
// Contract:
//
//	POST /auth/login     {username,password}                 -> {token,user}
//	POST /auth/register  {username,email,password,...}       -> {user}
//	POST /auth/refresh   (Authorization: Bearer <token>)     -> {token[,user]}
//	PUT  /auth/profile   (Authorization: Bearer <token>)     -> {user}
//
// Non-2xx responses carry {message} or {error:{code,message}} and are returned
// as *StatusError. Network failures wrap ErrTransport; unreadable success
// bodies wrap ErrDecode. Every request carries a fresh X-Request-ID.
package authapi
