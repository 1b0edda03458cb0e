/*
Package errs provides the application error taxonomy and its numeric error codes.

This file maps every error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Kind: KindValidation, Message: "Parâmetros inválidos."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Kind: KindValidation, Message: "Formato de requisição não suportado."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Kind: KindValidation, Message: "Formato de requisição não suportado."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Kind: KindValidation, Message: "Requisição contém dados inesperados."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Kind: KindPersistence, Message: "Muitas requisições. Tente novamente mais tarde.", Status: http.StatusTooManyRequests},

	ErrInvalidEmail:       {Code: ErrInvalidEmail, Kind: KindValidation, Message: "E-mail inválido"},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Kind: KindValidation, Message: "Senha inválida"},
	ErrNameRequired:       {Code: ErrNameRequired, Kind: KindValidation, Message: "Nome precisa ser preenchido!"},
	ErrMessageEmpty:       {Code: ErrMessageEmpty, Kind: KindValidation, Message: "Mensagem não pode estar vazia"},
	ErrRoomIDRequired:     {Code: ErrRoomIDRequired, Kind: KindValidation, Message: "ID da sala é obrigatório"},
	ErrSenderIDRequired:   {Code: ErrSenderIDRequired, Kind: KindValidation, Message: "ID do remetente é obrigatório"},
	ErrInvalidMessageType: {Code: ErrInvalidMessageType, Kind: KindValidation, Message: "Tipo de mensagem inválido: %s"},
	ErrRoomCodeInvalid:    {Code: ErrRoomCodeInvalid, Kind: KindValidation, Message: "Código da sala inválido"},
	ErrMediaTooLarge:      {Code: ErrMediaTooLarge, Kind: KindValidation, Message: "Arquivo vazio ou maior que o permitido."},

	// 2xxx
	ErrRoomCodeExists:   {Code: ErrRoomCodeExists, Kind: KindConflict, Message: "Código da sala já existe."},
	ErrRoomNotFound:     {Code: ErrRoomNotFound, Kind: KindNotFound, Message: "Sala não encontrada."},
	ErrRoomAccessDenied: {Code: ErrRoomAccessDenied, Kind: KindAuth, Message: "Código ou senha da sala inválidos"},

	// 3xxx
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Kind: KindAuth, Message: "Credenciais inválidas"},
	ErrUnauthorized:       {Code: ErrUnauthorized, Kind: KindAuth, Message: "Usuário não autenticado."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Kind: KindConflict, Message: "Usuário já existe!"},
	ErrUserNotFound:       {Code: ErrUserNotFound, Kind: KindNotFound, Message: "Usuário não encontrado."},

	// 4xxx
	ErrUploadFailed:          {Code: ErrUploadFailed, Kind: KindUpload, Message: "Falha no envio do arquivo."},
	ErrUploadUnauthenticated: {Code: ErrUploadUnauthenticated, Kind: KindUpload, Message: "Usuário não autenticado para envio de arquivo."},
	ErrMediaNotFound:         {Code: ErrMediaNotFound, Kind: KindNotFound, Message: "Arquivo não encontrado."},

	// 5xxx
	ErrUnknown:            {Code: ErrUnknown, Kind: KindPersistence, Message: "Algo deu errado. Tente novamente."},
	ErrPersistence:        {Code: ErrPersistence, Kind: KindPersistence, Message: "Falha ao acessar os dados."},
	ErrBackendUnavailable: {Code: ErrBackendUnavailable, Kind: KindPersistence, Message: "Servidor indisponível.", Status: http.StatusServiceUnavailable},
}

// kindStatus is the HTTP status used for a Kind when the template does not set one.
var kindStatus = map[Kind]int{
	KindValidation:  http.StatusBadRequest,
	KindAuth:        http.StatusUnauthorized,
	KindConflict:    http.StatusConflict,
	KindNotFound:    http.StatusNotFound,
	KindUpload:      http.StatusBadGateway,
	KindPersistence: http.StatusInternalServerError,
}
