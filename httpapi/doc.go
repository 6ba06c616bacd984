// Package httpapi expõe as rotas HTTP do proxy de disponibilidade.
//
// Rotas:
//
//	GET /                     informações do serviço
//	GET /healthz              liveness
//	GET /availability/:date   horários de um dia
//	GET /availability-range   horários de um intervalo de datas
//
// As rotas de disponibilidade aceitam caller_type=USER para resposta em
// texto puro e passam pelos middlewares que o main escolher (na prática, o
// rate limit). Resposta de sucesso sai com Cache-Control público; erro sai
// com no-store.
package httpapi
