// Package availability fala com a API de reservas da Peek e remodela a
// resposta para o formato servido pelo proxy.
//
// O fluxo é buscar, achatar e (opcionalmente) montar texto:
//
//   - Client consulta os horários na Peek (um dia ou um intervalo de datas)
//   - Parse achata o envelope JSON:API em uma lista de Slots
//   - FormatDayText/FormatRangeText montam a visão em texto puro para
//     chamadores humanos
//
// O Guard protege a borda de saída: limita as chamadas em voo e a taxa por
// atividade, para o proxy não sobrecarregar a Peek quando o tráfego cresce.
package availability
